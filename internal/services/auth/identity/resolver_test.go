package identity

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/services/auth/magiclink"
	"github.com/louisbranch/gatehouse/internal/services/auth/mail"
	"github.com/louisbranch/gatehouse/internal/services/auth/oauth"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	authsqlite "github.com/louisbranch/gatehouse/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
	"github.com/louisbranch/gatehouse/internal/services/auth/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) (mail.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return mail.Receipt{}, m.err
	}
	m.sent = append(m.sent, msg)
	return mail.Receipt{ID: "msg-1"}, nil
}

func (m *recordingMailer) lastLink(t *testing.T) url.Values {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	for _, line := range strings.Split(m.sent[len(m.sent)-1].Text, "\n") {
		if strings.Contains(line, magiclink.CallbackPath) {
			parsed, err := url.Parse(strings.TrimSpace(line))
			require.NoError(t, err)
			return parsed.Query()
		}
	}
	t.Fatal("mail has no magic link")
	return nil
}

type fixture struct {
	resolver *Resolver
	store    *authsqlite.Store
	mailer   *recordingMailer
	now      time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := authsqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, mailer: &recordingMailer{}, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	issuer := verification.NewIssuer(store, 0, verification.WithClock(clock))
	composer := magiclink.NewComposer(magiclink.Config{BaseURL: "http://localhost:8080", AppName: "Gatehouse"})
	f.resolver = NewResolver(store, issuer, composer, f.mailer, append([]Option{WithClock(clock)}, opts...)...)
	return f
}

func (f *fixture) seedUser(t *testing.T, id, username, email string, verified bool) user.User {
	t.Helper()
	u := user.User{ID: id, Username: username, Email: email, Theme: user.ThemeSystem, CreatedAt: f.now, UpdatedAt: f.now}
	if verified {
		at := f.now
		u.EmailVerifiedAt = &at
	}
	require.NoError(t, f.store.PutUser(context.Background(), u))
	return u
}

func TestPasswordlessLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SignIn(ctx, "A@x.com", "/dashboard"))

	created, err := f.store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "user", created.Username)
	assert.False(t, created.EmailVerified())

	link := f.mailer.lastLink(t)
	assert.Equal(t, "a@x.com", link.Get("email"))
	assert.Equal(t, "/dashboard", link.Get("callbackUrl"))

	resolved, err := f.resolver.CompleteEmailLogin(ctx, link.Get("token"), link.Get("email"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	assert.True(t, resolved.EmailVerified())

	_, err = f.resolver.CompleteEmailLogin(ctx, link.Get("token"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "second use: %v", err)
}

func TestSignInReusesExistingUser(t *testing.T) {
	f := newFixture(t)
	existing := f.seedUser(t, "user-1", "alice", "a@x.com", true)

	require.NoError(t, f.resolver.SignIn(context.Background(), "a@x.com", ""))
	link := f.mailer.lastLink(t)

	resolved, err := f.resolver.CompleteEmailLogin(context.Background(), link.Get("token"), "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resolved.ID)
}

func TestSignInSurfacesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	err := f.resolver.SignIn(context.Background(), "a@x.com", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProvider), "got %v", err)
}

func TestSignInRejectsInvalidEmail(t *testing.T) {
	f := newFixture(t)
	err := f.resolver.SignIn(context.Background(), "not-an-email", "")
	assert.ErrorIs(t, err, user.ErrInvalidEmail)
	assert.Empty(t, f.mailer.sent)
}

func TestCompleteEmailLoginExpiredToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.resolver.SignIn(context.Background(), "a@x.com", ""))
	link := f.mailer.lastLink(t)

	f.now = f.now.Add(31 * time.Minute)
	_, err := f.resolver.CompleteEmailLogin(context.Background(), link.Get("token"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExpired), "got %v", err)
}

func TestVerifyEmailRejectsChangedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedUser(t, "user-1", "alice", "a@x.com", false)

	require.NoError(t, f.resolver.ResendVerification(ctx, account.ID, ""))
	link := f.mailer.lastLink(t)
	require.NoError(t, f.store.SetUserEmail(ctx, account.ID, "b@x.com", f.now))

	_, err := f.resolver.VerifyEmail(ctx, account.ID, link.Get("token"))
	assert.ErrorIs(t, err, ErrEmailMismatch)
}

func TestVerifyEmailRejectsOtherUsersToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user-1", "alice", "a@x.com", false)
	f.seedUser(t, "user-2", "bob", "b@x.com", false)

	require.NoError(t, f.resolver.ResendVerification(ctx, "user-1", ""))
	link := f.mailer.lastLink(t)

	_, err := f.resolver.VerifyEmail(ctx, "user-2", link.Get("token"))
	assert.ErrorIs(t, err, ErrEmailMismatch)
}

func TestVerifyEmailMarksVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user-1", "alice", "a@x.com", false)

	require.NoError(t, f.resolver.ResendVerification(ctx, "user-1", ""))
	verified, err := f.resolver.VerifyEmail(ctx, "user-1", f.mailer.lastLink(t).Get("token"))
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified())

	assert.ErrorIs(t, f.resolver.ResendVerification(ctx, "user-1", ""), ErrAlreadyVerified)
}

func TestResendVerificationWithoutEmail(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", "guest_abc", "", false)
	assert.ErrorIs(t, f.resolver.ResendVerification(context.Background(), "user-1", ""), ErrNoEmail)
}

func TestResolveOAuthPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "user-1", "alice", "e@x.com", true)

	t.Run("verified email links existing user", func(t *testing.T) {
		resolved, err := f.resolver.ResolveOAuth(ctx, oauth.ProviderGitHub, oauth.UserInfo{ID: "P1", Email: "E@x.com", EmailVerified: true, Name: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, owner.ID, resolved.ID)

		link, err := f.store.GetOAuthLink(ctx, oauth.ProviderGitHub, "P1")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, link.UserID)
	})

	t.Run("existing link wins over changed email", func(t *testing.T) {
		resolved, err := f.resolver.ResolveOAuth(ctx, oauth.ProviderGitHub, oauth.UserInfo{ID: "P1", Email: "other@x.com", EmailVerified: true})
		require.NoError(t, err)
		assert.Equal(t, owner.ID, resolved.ID)
	})

	t.Run("new provider same verified email links", func(t *testing.T) {
		resolved, err := f.resolver.ResolveOAuth(ctx, oauth.ProviderGoogle, oauth.UserInfo{ID: "G1", Email: "e@x.com", EmailVerified: true})
		require.NoError(t, err)
		assert.Equal(t, owner.ID, resolved.ID)

		links, err := f.store.ListOAuthLinks(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
	})

	t.Run("unverified email creates separate user", func(t *testing.T) {
		resolved, err := f.resolver.ResolveOAuth(ctx, oauth.ProviderDiscord, oauth.UserInfo{ID: "D1", Email: "e@x.com", Name: "Eve"})
		require.NoError(t, err)
		assert.NotEqual(t, owner.ID, resolved.ID)
		assert.Empty(t, resolved.Email)
		assert.Equal(t, "eve", resolved.Username)
	})
}

func TestResolveOAuthCreatesVerifiedUser(t *testing.T) {
	f := newFixture(t)
	created, err := f.resolver.ResolveOAuth(context.Background(), oauth.ProviderGoogle, oauth.UserInfo{
		ID: "G1", Email: "ada@x.com", EmailVerified: true, Name: "Ada Lovelace", AvatarURL: "https://pic",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada_lovelace", created.Username)
	assert.Equal(t, "ada@x.com", created.Email)
	assert.True(t, created.EmailVerified())
	assert.Equal(t, "https://pic", created.AvatarURL)
}

func TestResolveOAuthMarksMatchedEmailVerified(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", "alice", "a@x.com", false)

	resolved, err := f.resolver.ResolveOAuth(context.Background(), oauth.ProviderGoogle, oauth.UserInfo{ID: "G1", Email: "a@x.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resolved.ID)
	assert.True(t, resolved.EmailVerified())
}

func TestUsernameProbing(t *testing.T) {
	f := newFixture(t,
		WithUsernameProbes(3),
		WithUsernameSuffix(func() (string, error) { return "r4nd0m", nil }),
	)
	ctx := context.Background()

	var usernames []string
	for i, email := range []string{"ada@a.com", "ada@b.com", "ada@c.com", "ada@d.com"} {
		require.NoError(t, f.resolver.SignIn(ctx, email, ""), "signin %d", i)
		created, err := f.store.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		usernames = append(usernames, created.Username)
	}
	assert.Equal(t, []string{"ada", "ada_1", "ada_2", "ada_r4nd0m"}, usernames)

	err := f.resolver.SignIn(ctx, "ada@e.com", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUsernameTaken)
}

func TestResolveWalletCreatesAndReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	address := "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

	first, err := f.resolver.ResolveWallet(ctx, address, 1)
	require.NoError(t, err)
	assert.Empty(t, first.Email)
	assert.Equal(t, "0x2c7536e3", first.Username)

	second, err := f.resolver.ResolveWallet(ctx, strings.ToLower(address), 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	wallets, err := f.resolver.ListWallets(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.True(t, wallets[0].IsPrimary)
	assert.Equal(t, strings.ToLower(address), wallets[0].Address)
}

// staleWalletStore hides existing wallets from the first lookups, as if
// another login linked the address between read and write.
type staleWalletStore struct {
	*authsqlite.Store
	hidden int
}

func (s *staleWalletStore) GetWallet(ctx context.Context, address string) (storage.Wallet, error) {
	if s.hidden > 0 {
		s.hidden--
		return storage.Wallet{}, storage.ErrNotFound
	}
	return s.Store.GetWallet(ctx, address)
}

func TestResolveWalletLosingRaceLeavesNoOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const address = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
	owner := f.seedUser(t, "user-1", "alice", "a@x.com", true)
	_, err := f.resolver.ConnectWallet(ctx, owner.ID, address, 1, "")
	require.NoError(t, err)

	racing := &staleWalletStore{Store: f.store, hidden: 2}
	resolver := NewResolver(racing, f.resolver.issuer, f.resolver.composer, f.mailer, WithClock(func() time.Time { return f.now }))

	resolved, err := resolver.ResolveWallet(ctx, address, 1)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, resolved.ID)

	exists, err := f.store.UsernameExists(ctx, "0x2c7536e3")
	require.NoError(t, err)
	assert.False(t, exists, "losing login must not leave a user behind")
}

func TestResolveOAuthGuestLikeNameIsNotGuest(t *testing.T) {
	f := newFixture(t)
	resolved, err := f.resolver.ResolveOAuth(context.Background(), oauth.ProviderDiscord, oauth.UserInfo{
		ID: "d-1", Name: "Guest Writer", Email: "gw@x.com", EmailVerified: false,
	})
	require.NoError(t, err)
	assert.Equal(t, "guest_writer", resolved.Username)
	assert.Empty(t, resolved.Email)
	assert.False(t, resolved.IsGuest())

	stored, err := f.store.GetUser(context.Background(), resolved.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsGuest())
}

func TestConnectWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user-1", "alice", "a@x.com", true)
	f.seedUser(t, "user-2", "bob", "b@x.com", true)
	const (
		first  = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
		second = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	)

	linked, err := f.resolver.ConnectWallet(ctx, "user-1", first, 1, "main")
	require.NoError(t, err)
	assert.True(t, linked.IsPrimary)

	linked, err = f.resolver.ConnectWallet(ctx, "user-1", second, 1, "cold")
	require.NoError(t, err)
	assert.False(t, linked.IsPrimary)

	_, err = f.resolver.ConnectWallet(ctx, "user-2", first, 1, "")
	assert.ErrorIs(t, err, storage.ErrWalletConflict)

	require.NoError(t, f.resolver.SetPrimaryWallet(ctx, "user-1", second))
	wallets, err := f.resolver.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, second, wallets[0].Address)
	assert.True(t, wallets[0].IsPrimary)
	assert.False(t, wallets[1].IsPrimary)

	assert.ErrorIs(t, f.resolver.SetPrimaryWallet(ctx, "user-2", second), storage.ErrNotFound)
}

func TestCreateGuest(t *testing.T) {
	f := newFixture(t)
	guest, err := f.resolver.CreateGuest(context.Background())
	require.NoError(t, err)
	assert.True(t, guest.IsGuest())
	assert.True(t, strings.HasPrefix(guest.Username, "guest_"))
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, err := f.resolver.ResolveOAuth(ctx, oauth.ProviderGitHub, oauth.UserInfo{ID: "P1", Email: "a@x.com", EmailVerified: true})
	require.NoError(t, err)
	_, err = f.resolver.ConnectWallet(ctx, owner.ID, "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23", 1, "")
	require.NoError(t, err)

	require.NoError(t, f.resolver.DeleteAccount(ctx, owner.ID))

	_, err = f.store.GetOAuthLink(ctx, oauth.ProviderGitHub, "P1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.GetWallet(ctx, "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.resolver.DeleteAccount(ctx, owner.ID), storage.ErrNotFound)
}
