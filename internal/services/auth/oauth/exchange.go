package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/otel"
	"github.com/louisbranch/gatehouse/internal/platform/secret"
	"github.com/louisbranch/gatehouse/internal/platform/timeouts"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

const maxProfileBytes = 1 << 20

var (
	// ErrUnknownProvider indicates a provider that is not configured.
	ErrUnknownProvider = apperrors.New(apperrors.CodeNotFound, "unknown provider")
	// ErrInvalidState indicates a callback whose state was never issued or was
	// already used.
	ErrInvalidState = apperrors.New(apperrors.CodeInvalidState, "invalid or reused state")
	// ErrStateExpired indicates a callback that arrived after the state TTL.
	ErrStateExpired = apperrors.New(apperrors.CodeExpired, "login attempt expired")
)

var tracer = otel.Tracer("oauth")

// CallbackParams are the query parameters a provider sends back.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Result is the outcome of a completed exchange.
type Result struct {
	Provider    string
	UserInfo    UserInfo
	CallbackURL string
}

// Exchange runs the authorization-code flow with PKCE against external
// providers.
type Exchange struct {
	config     Config
	store      storage.OAuthStateStore
	clock      func() time.Time
	httpClient *http.Client
}

// NewExchange builds an Exchange.
func NewExchange(config Config, store storage.OAuthStateStore) *Exchange {
	if config.StateTTL <= 0 {
		config.StateTTL = DefaultStateTTL
	}
	return &Exchange{
		config:     config,
		store:      store,
		clock:      time.Now,
		httpClient: &http.Client{Timeout: timeouts.Upstream},
	}
}

// SetClock overrides the time source.
func (e *Exchange) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

// SetHTTPClient overrides the client used for provider calls.
func (e *Exchange) SetHTTPClient(client *http.Client) {
	if client != nil {
		e.httpClient = client
	}
}

// Providers returns the ids of enabled providers.
func (e *Exchange) Providers() []string {
	ids := make([]string, 0, len(e.config.Providers))
	for id := range e.config.Providers {
		ids = append(ids, id)
	}
	return ids
}

func (e *Exchange) provider(providerID string) (ProviderConfig, ProfileParser, error) {
	provider, ok := e.config.Providers[providerID]
	if !ok {
		return ProviderConfig{}, nil, ErrUnknownProvider
	}
	parser, ok := ParserFor(providerID)
	if !ok {
		return ProviderConfig{}, nil, ErrUnknownProvider
	}
	return provider, parser, nil
}

func oauthConfig(provider ProviderConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     provider.ClientID,
		ClientSecret: provider.ClientSecret,
		RedirectURL:  provider.RedirectURI,
		Scopes:       provider.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.AuthURL,
			TokenURL:  provider.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Begin records a fresh state and PKCE verifier and returns the provider's
// authorize URL.
func (e *Exchange) Begin(ctx context.Context, providerID, callbackURL string) (string, error) {
	provider, _, err := e.provider(providerID)
	if err != nil {
		return "", err
	}

	state, err := secret.Hex(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	verifier := NewCodeVerifier()
	now := e.clock().UTC()
	if err := e.store.PutOAuthState(ctx, storage.OAuthState{
		State:        state,
		Provider:     providerID,
		CodeVerifier: verifier,
		CallbackURL:  callbackURL,
		ExpiresAt:    now.Add(e.config.StateTTL),
		CreatedAt:    now,
	}); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return oauthConfig(provider).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete validates the callback, exchanges the code and fetches the
// normalised profile. The state is deleted before any upstream call, so a
// callback can be completed at most once.
func (e *Exchange) Complete(ctx context.Context, providerID string, params CallbackParams) (result Result, err error) {
	ctx, span := tracer.Start(ctx, "oauth.complete")
	span.SetAttributes(attribute.String("oauth.provider", providerID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperrors.ReasonOf(err))
		}
		span.End()
	}()

	provider, parser, err := e.provider(providerID)
	if err != nil {
		return Result{}, err
	}

	if params.Error != "" {
		if params.State != "" {
			_, _ = e.store.TakeOAuthState(ctx, params.State)
		}
		return Result{}, apperrors.WithMetadata(apperrors.CodeProvider, providerErrorMessage(params),
			map[string]string{"provider": providerID, "error": params.Error})
	}
	if params.State == "" {
		return Result{}, ErrInvalidState
	}

	state, err := e.store.TakeOAuthState(ctx, params.State)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, ErrInvalidState
	}
	if err != nil {
		return Result{}, fmt.Errorf("take oauth state: %w", err)
	}
	if state.Provider != providerID {
		return Result{}, ErrInvalidState
	}
	if state.ExpiresAt.Before(e.clock().UTC()) {
		return Result{}, ErrStateExpired
	}
	if params.Code == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	cfg := oauthConfig(provider)
	token, err := cfg.Exchange(ctx, params.Code, oauth2.VerifierOption(state.CodeVerifier))
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeProvider, "token exchange failed", err)
	}

	client := cfg.Client(ctx, token)
	body, err := fetch(ctx, client, provider.UserInfoURL)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeProvider, "userinfo request failed", err)
	}
	info, err := parser.ParseProfile(body)
	if err != nil {
		return Result{}, err
	}

	if emailParser, ok := parser.(EmailParser); ok && provider.EmailsURL != "" {
		emails, err := fetch(ctx, client, provider.EmailsURL)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeProvider, "email lookup failed", err)
		}
		email, verified, err := emailParser.ParseEmails(emails)
		if err != nil {
			return Result{}, err
		}
		if verified {
			info.Email = email
			info.EmailVerified = true
		}
	}

	return Result{Provider: providerID, UserInfo: info, CallbackURL: state.CallbackURL}, nil
}

// DeleteExpired removes abandoned authorization attempts.
func (e *Exchange) DeleteExpired(ctx context.Context) (int64, error) {
	return e.store.DeleteExpiredOAuthStates(ctx, e.clock().UTC())
}

func fetch(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
}

func providerErrorMessage(params CallbackParams) string {
	message := "provider returned " + strings.TrimSpace(params.Error)
	if description := strings.TrimSpace(params.ErrorDescription); description != "" {
		message += ": " + description
	}
	return message
}
