package session

import (
	"net/http"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/config"
)

// CookieName is the session cookie name.
const CookieName = "session_token"

// CookiePolicy holds the mode-dependent cookie attributes.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// PolicyFor returns the cookie policy for a deployment mode: strict and
// HTTPS-only for 60 days in production, lax for a year in development.
func PolicyFor(mode config.Mode) CookiePolicy {
	if mode.IsProduction() {
		return CookiePolicy{Secure: true, SameSite: http.SameSiteStrictMode, MaxAge: 60 * 24 * time.Hour}
	}
	return CookiePolicy{Secure: false, SameSite: http.SameSiteLaxMode, MaxAge: 365 * 24 * time.Hour}
}

// Write sets the session cookie.
func (p CookiePolicy) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// Clear overwrites the session cookie with an empty, already expired value.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// TokenFromRequest returns the session token cookie value, or "".
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
