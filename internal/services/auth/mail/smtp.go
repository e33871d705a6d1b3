package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/id"
)

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	addr  string
	from  string
	auth  smtp.Auth
	clock func() time.Time
	send  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds an SMTPMailer. PLAIN auth is used when a username is
// configured.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	mailer := &SMTPMailer{
		addr:  cfg.SMTPAddr,
		from:  cfg.From,
		clock: time.Now,
		send:  smtp.SendMail,
	}
	if cfg.SMTPUsername != "" {
		host, _, err := net.SplitHostPort(cfg.SMTPAddr)
		if err != nil {
			host = cfg.SMTPAddr
		}
		mailer.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host)
	}
	return mailer
}

// Send delivers msg. Delivery failures carry CodeProvider.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := validate(msg); err != nil {
		return Receipt{}, err
	}
	from, err := mail.ParseAddress(m.from)
	if err != nil {
		return Receipt{}, fmt.Errorf("mail: parse sender: %w", err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return Receipt{}, fmt.Errorf("mail: parse recipient: %w", err)
	}

	messageID, err := id.NewID()
	if err != nil {
		return Receipt{}, err
	}
	body, err := m.compose(messageID, from, to, msg)
	if err != nil {
		return Receipt{}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, from.Address, []string{to.Address}, body)
	}()
	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return Receipt{}, apperrors.Wrap(apperrors.CodeProvider, "email delivery failed", err)
		}
	}
	return Receipt{ID: messageID}, nil
}

func (m *SMTPMailer) compose(messageID string, from, to *mail.Address, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMessage-ID: <%s@gatehouse>\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		from.String(), to.String(), mime.QEncoding.Encode("utf-8", msg.Subject),
		m.clock().UTC().Format(time.RFC1123Z), messageID, writer.Boundary())
	var out bytes.Buffer
	out.WriteString(header)

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		w, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}
