package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/requestctx"
	"github.com/louisbranch/gatehouse/internal/services/auth/oauth"
	"github.com/louisbranch/gatehouse/internal/services/auth/session"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

const maxBodyBytes = 64 << 10

var errBadRequest = apperrors.New(apperrors.CodeInvalidArgument, "invalid request")

type statusResponse struct {
	Status string `json:"status"`
}

var checkEmail = statusResponse{Status: "check your email"}

// decodeBody reads a JSON or form body into fields keyed by JSON name.
func decodeBody(r *http.Request, target any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return errBadRequest
		}
		values := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			values[key] = r.PostForm.Get(key)
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return errBadRequest
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return errBadRequest
		}
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target); err != nil {
		return errBadRequest
	}
	return nil
}

// currentUser resolves the session cookie. Callers decide whether a missing
// session is a failure.
func (s *Server) currentUser(r *http.Request) (user.User, *http.Request, error) {
	current, err := s.sessions.Validate(r.Context(), session.TokenFromRequest(r))
	if err != nil {
		return user.User{}, r, err
	}
	return current, r.WithContext(requestctx.WithUserID(r.Context(), current.ID)), nil
}

// signedInUser is currentUser without guests or errors; it reports whether a
// real account is signed in.
func (s *Server) signedInUser(r *http.Request) (user.User, bool) {
	current, _, err := s.currentUser(r)
	if err != nil || current.IsGuest() {
		return user.User{}, false
	}
	return current, true
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, userID string) error {
	minted, err := s.sessions.Mint(r.Context(), userID)
	if err != nil {
		return err
	}
	s.cookies.Write(w, minted.Token)
	return nil
}

func (s *Server) handleEmailSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		CallbackURL string `json:"callbackUrl"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, "signin email", err)
		return
	}
	if err := s.resolver.SignIn(r.Context(), body.Email, s.safeCallbackURL(body.CallbackURL)); err != nil {
		s.writeError(w, r, "signin email", err)
		return
	}
	writeJSON(w, http.StatusAccepted, checkEmail)
}

func (s *Server) handleEmailCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target := s.safeCallbackURL(query.Get("callbackUrl"))

	resolved, err := s.resolver.CompleteEmailLogin(r.Context(), query.Get("token"), query.Get("email"))
	if err != nil {
		s.writeBrowserError(w, r, "email callback", err)
		return
	}
	// A link for the signed-in account only verifies it; any other link
	// switches the browser to the link's account.
	if current, ok := s.signedInUser(r); !ok || current.ID != resolved.ID {
		if err := s.startSession(w, r, resolved.ID); err != nil {
			s.writeBrowserError(w, r, "email callback", err)
			return
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleOAuthSignIn(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	redirectURL, err := s.exchange.Begin(r.Context(), providerID, s.safeCallbackURL(r.URL.Query().Get("callbackUrl")))
	if err != nil {
		s.writeBrowserError(w, r, "oauth begin", err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	query := r.URL.Query()
	result, err := s.exchange.Complete(r.Context(), providerID, oauth.CallbackParams{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	})
	if err != nil {
		s.writeBrowserError(w, r, "oauth callback", err)
		return
	}
	resolved, err := s.resolver.ResolveOAuth(r.Context(), result.Provider, result.UserInfo)
	if err != nil {
		s.writeBrowserError(w, r, "oauth resolve", err)
		return
	}
	if err := s.startSession(w, r, resolved.ID); err != nil {
		s.writeBrowserError(w, r, "oauth callback", err)
		return
	}
	http.Redirect(w, r, s.safeCallbackURL(result.CallbackURL), http.StatusSeeOther)
}

type walletMessageResponse struct {
	Message  string `json:"message"`
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	IssuedAt string `json:"issuedAt"`
}

func (s *Server) handleWalletMessage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	chainID := int64(1)
	if raw := strings.TrimSpace(query.Get("chainId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, "wallet message", apperrors.New(apperrors.CodeInvalidArgument, "invalid chain id"))
			return
		}
		chainID = parsed
	}
	msg, err := s.wallets.Message(s.baseURL.Host, query.Get("address"), chainID)
	if err != nil {
		s.writeError(w, r, "wallet message", err)
		return
	}
	writeJSON(w, http.StatusOK, walletMessageResponse{
		Message:  msg.String(),
		Address:  msg.Address,
		ChainID:  msg.ChainID,
		IssuedAt: msg.IssuedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWalletVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address   string `json:"address"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
		Label     string `json:"label"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, "wallet verify", err)
		return
	}
	verified, err := s.wallets.VerifyLogin(body.Address, body.Message, body.Signature)
	if err != nil {
		s.writeError(w, r, "wallet verify", err)
		return
	}
	if verified.Domain != s.baseURL.Host {
		s.writeError(w, r, "wallet verify", apperrors.New(apperrors.CodeInvalidSignature, "message was issued for another site"))
		return
	}

	if current, ok := s.signedInUser(r); ok {
		if _, err := s.resolver.ConnectWallet(r.Context(), current.ID, verified.Address, verified.ChainID, body.Label); err != nil {
			s.writeError(w, r, "wallet connect", err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse{User: newUserView(current)})
		return
	}

	resolved, err := s.resolver.ResolveWallet(r.Context(), verified.Address, verified.ChainID)
	if err != nil {
		s.writeError(w, r, "wallet resolve", err)
		return
	}
	if err := s.startSession(w, r, resolved.ID); err != nil {
		s.writeError(w, r, "wallet verify", err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(resolved)})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.currentUser(r)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
			s.writeError(w, r, "session", err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse{})
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(current)})
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	current, created, err := s.guests.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, r, "guest", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, userResponse{User: newUserView(current)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		if err := s.sessions.Revoke(r.Context(), token); err != nil && !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
			s.logf("request %s: logout: %v", requestctx.RequestIDFromContext(r.Context()), err)
		}
	}
	s.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// requireUser writes a 401 and returns false when no session is present.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request, op string) (user.User, *http.Request, bool) {
	current, r, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, r, op, err)
		return user.User{}, r, false
	}
	return current, r, true
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	current, r, ok := s.requireUser(w, r, "resend verification")
	if !ok {
		return
	}
	var body struct {
		CallbackURL string `json:"callbackUrl"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, r, "resend verification", err)
			return
		}
	}
	if err := s.resolver.ResendVerification(r.Context(), current.ID, s.safeCallbackURL(body.CallbackURL)); err != nil {
		s.writeError(w, r, "resend verification", err)
		return
	}
	writeJSON(w, http.StatusAccepted, checkEmail)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	current, r, ok := s.requireUser(w, r, "list wallets")
	if !ok {
		return
	}
	wallets, err := s.resolver.ListWallets(r.Context(), current.ID)
	if err != nil {
		s.writeError(w, r, "list wallets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": newWalletViews(wallets)})
}

func (s *Server) handleSetPrimaryWallet(w http.ResponseWriter, r *http.Request) {
	current, r, ok := s.requireUser(w, r, "set primary wallet")
	if !ok {
		return
	}
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, "set primary wallet", err)
		return
	}
	if err := s.resolver.SetPrimaryWallet(r.Context(), current.ID, body.Address); err != nil {
		s.writeError(w, r, "set primary wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	current, r, ok := s.requireUser(w, r, "delete account")
	if !ok {
		return
	}
	if err := s.resolver.DeleteAccount(r.Context(), current.ID); err != nil {
		s.writeError(w, r, "delete account", err)
		return
	}
	s.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
