// Package magiclink builds passwordless sign-in links and the emails that
// carry them.
package magiclink

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/mail"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

// CallbackPath is the route that consumes email links.
const CallbackPath = "/api/auth/callback/email"

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Kind selects the email wording.
type Kind string

const (
	KindSignIn Kind = "signin"
	KindVerify Kind = "verify"
)

// LinkURL returns {base}/api/auth/callback/email?token=&email=&callbackUrl=.
func LinkURL(baseURL, token, email, callbackURL string) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("email", email)
	if callbackURL != "" {
		query.Set("callbackUrl", callbackURL)
	}
	return strings.TrimRight(baseURL, "/") + CallbackPath + "?" + query.Encode()
}

// Composer renders magic-link emails.
type Composer struct {
	config Config
}

// NewComposer builds a Composer.
func NewComposer(config Config) *Composer {
	return &Composer{config: config}
}

type emailView struct {
	AppName   string
	Email     string
	Link      string
	ExpiresIn string
}

// Compose renders the email delivering token.
func (c *Composer) Compose(kind Kind, token storage.VerificationToken, callbackURL string) (mail.Message, error) {
	link := LinkURL(c.config.BaseURL, token.Token, token.Email, callbackURL)
	view := emailView{
		AppName:   c.config.AppName,
		Email:     token.Email,
		Link:      link,
		ExpiresIn: formatTTL(token.ExpiresAt.Sub(token.CreatedAt)),
	}

	name := "signin.html"
	subject := "Sign in to " + c.config.AppName
	if kind == KindVerify {
		name = "verify.html"
		subject = "Verify your email for " + c.config.AppName
	}

	var html bytes.Buffer
	if err := templates.ExecuteTemplate(&html, name, view); err != nil {
		return mail.Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return mail.Message{
		To:      token.Email,
		Subject: subject,
		HTML:    html.String(),
		Text:    subject + ":\n\n" + link + "\n\nThe link expires in " + view.ExpiresIn + ".",
	}, nil
}

func formatTTL(ttl time.Duration) string {
	if ttl <= 0 {
		return "a few minutes"
	}
	if ttl%time.Hour == 0 {
		hours := int(ttl / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
