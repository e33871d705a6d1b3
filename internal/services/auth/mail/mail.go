// Package mail delivers transactional email.
package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/gatehouse/internal/platform/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Receipt identifies a delivered message.
type Receipt struct {
	ID string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Config selects and configures the mailer.
type Config struct {
	SMTPAddr     string `env:"GATEHOUSE_SMTP_ADDR"`
	SMTPUsername string `env:"GATEHOUSE_SMTP_USERNAME"`
	SMTPPassword string `env:"GATEHOUSE_SMTP_PASSWORD"`
	From         string `env:"GATEHOUSE_MAIL_FROM" envDefault:"Gatehouse <no-reply@localhost>"`
}

// LoadConfigFromEnv reads mail configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("mail config: %w", err)
	}
	return cfg, nil
}

// New returns an SMTP mailer when an SMTP address is configured and a log
// mailer otherwise.
func New(cfg Config) Mailer {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return NewLogMailer(log.Printf)
	}
	return NewSMTPMailer(cfg)
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail: recipient is required")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return fmt.Errorf("mail: header contains newline")
	}
	return nil
}
