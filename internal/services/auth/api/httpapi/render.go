package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/requestctx"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

const failurePrefix = "authentication failed: "

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type userView struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email,omitempty"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	AvatarURL       string     `json:"avatarUrl,omitempty"`
	IsAdmin         bool       `json:"isAdmin"`
	IsSuperadmin    bool       `json:"isSuperadmin"`
	IsGuest         bool       `json:"isGuest"`
	Theme           string     `json:"theme"`
}

type userResponse struct {
	User *userView `json:"user"`
}

type walletView struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Label     string    `json:"label,omitempty"`
	IsPrimary bool      `json:"isPrimary"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserView(u user.User) *userView {
	return &userView{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		AvatarURL:       u.AvatarURL,
		IsAdmin:         u.IsAdmin,
		IsSuperadmin:    u.IsSuperadmin,
		IsGuest:         u.IsGuest(),
		Theme:           string(u.Theme),
	}
}

func newWalletViews(wallets []storage.Wallet) []walletView {
	views := make([]walletView, 0, len(wallets))
	for _, w := range wallets {
		views = append(views, walletView{
			Address:   w.Address,
			ChainID:   w.ChainID,
			Label:     w.Label,
			IsPrimary: w.IsPrimary,
			CreatedAt: w.CreatedAt,
		})
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, status := s.classify(r, op, err)
	writeJSON(w, status, errorResponse{Error: failurePrefix + apperrors.ReasonOf(err), Code: string(code)})
}

func (s *Server) writeBrowserError(w http.ResponseWriter, r *http.Request, op string, err error) {
	_, status := s.classify(r, op, err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(failurePrefix + apperrors.ReasonOf(err)))
}

func (s *Server) classify(r *http.Request, op string, err error) (apperrors.Code, int) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logf("request %s: %s: %v", requestctx.RequestIDFromContext(r.Context()), op, err)
	}
	return code, status
}
