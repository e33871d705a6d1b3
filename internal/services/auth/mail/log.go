package mail

import (
	"context"

	"github.com/louisbranch/gatehouse/internal/platform/id"
)

// LogMailer writes messages to a log instead of delivering them. It is the
// development default so magic links can be copied from the console.
type LogMailer struct {
	logf func(format string, args ...any)
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logf func(format string, args ...any)) *LogMailer {
	return &LogMailer{logf: logf}
}

// Send logs msg.
func (m *LogMailer) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := validate(msg); err != nil {
		return Receipt{}, err
	}
	messageID, err := id.NewID()
	if err != nil {
		return Receipt{}, err
	}
	if m.logf != nil {
		m.logf("mail %s to=%s subject=%q\n%s", messageID, msg.To, msg.Subject, msg.Text)
	}
	return Receipt{ID: messageID}, nil
}
