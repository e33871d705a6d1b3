package httpapi

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/gatehouse/internal/services/auth/guest"
	"github.com/louisbranch/gatehouse/internal/services/auth/identity"
	"github.com/louisbranch/gatehouse/internal/services/auth/oauth"
	"github.com/louisbranch/gatehouse/internal/services/auth/session"
	"github.com/louisbranch/gatehouse/internal/services/auth/wallet"
)

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	BaseURL  string
	Exchange *oauth.Exchange
	Resolver *identity.Resolver
	Sessions *session.Manager
	Guests   *guest.Bootstrapper
	Wallets  *wallet.Verifier
	Cookies  session.CookiePolicy
	Logf     func(format string, args ...any)
}

// Server serves the auth HTTP API.
type Server struct {
	baseURL  *url.URL
	exchange *oauth.Exchange
	resolver *identity.Resolver
	sessions *session.Manager
	guests   *guest.Bootstrapper
	wallets  *wallet.Verifier
	cookies  session.CookiePolicy
	logf     func(format string, args ...any)
}

// NewServer validates deps and builds a Server.
func NewServer(deps Dependencies) (*Server, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("httpapi: base URL must be absolute")
	}
	if deps.Exchange == nil || deps.Resolver == nil || deps.Sessions == nil || deps.Guests == nil || deps.Wallets == nil {
		return nil, errors.New("httpapi: missing dependency")
	}
	logf := deps.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Server{
		baseURL:  base,
		exchange: deps.Exchange,
		resolver: deps.Resolver,
		sessions: deps.Sessions,
		guests:   deps.Guests,
		wallets:  deps.Wallets,
		cookies:  deps.Cookies,
		logf:     logf,
	}, nil
}

// Handler returns the routed handler wrapped in request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return withRequestID(mux)
}

// RegisterRoutes registers the auth endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signin/email", s.handleEmailSignIn)
	mux.HandleFunc("GET /api/auth/callback/email", s.handleEmailCallback)
	mux.HandleFunc("GET /api/auth/signin/{provider}", s.handleOAuthSignIn)
	mux.HandleFunc("GET /api/auth/callback/{provider}", s.handleOAuthCallback)
	mux.HandleFunc("GET /api/auth/wallet/message", s.handleWalletMessage)
	mux.HandleFunc("POST /api/auth/wallet/verify", s.handleWalletVerify)
	mux.HandleFunc("GET /api/auth/session", s.handleSession)
	mux.HandleFunc("POST /api/auth/guest", s.handleGuest)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/verify-email/resend", s.handleResendVerification)
	mux.HandleFunc("GET /api/auth/wallets", s.handleListWallets)
	mux.HandleFunc("POST /api/auth/wallets/primary", s.handleSetPrimaryWallet)
	mux.HandleFunc("DELETE /api/auth/account", s.handleDeleteAccount)
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// safeCallbackURL keeps post-login redirects on this origin. Relative paths
// pass through; absolute URLs must match the base URL's scheme and host.
func (s *Server) safeCallbackURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	if strings.HasPrefix(raw, "/") {
		if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
			return "/"
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host != "" || parsed.Scheme != "" {
			return "/"
		}
		return parsed.String()
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != s.baseURL.Scheme || parsed.Host != s.baseURL.Host {
		return "/"
	}
	return parsed.String()
}
