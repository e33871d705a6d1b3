package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/config"
	platformgrpc "github.com/louisbranch/gatehouse/internal/platform/grpc"
	"github.com/louisbranch/gatehouse/internal/platform/timeouts"
	"github.com/louisbranch/gatehouse/internal/services/auth/api/httpapi"
	"github.com/louisbranch/gatehouse/internal/services/auth/guest"
	"github.com/louisbranch/gatehouse/internal/services/auth/identity"
	"github.com/louisbranch/gatehouse/internal/services/auth/magiclink"
	"github.com/louisbranch/gatehouse/internal/services/auth/mail"
	"github.com/louisbranch/gatehouse/internal/services/auth/oauth"
	"github.com/louisbranch/gatehouse/internal/services/auth/session"
	authsqlite "github.com/louisbranch/gatehouse/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/gatehouse/internal/services/auth/verification"
	"github.com/louisbranch/gatehouse/internal/services/auth/wallet"
	"google.golang.org/grpc"
)

// HealthService is the gRPC health service name reported by the auth server.
const HealthService = "gatehouse.auth"

// Config holds process-level settings. Per-component settings are read from
// the environment by each component.
type Config struct {
	Port                int
	HTTPAddr            string
	DBPath              string
	Mode                config.Mode
	CleanupInterval     time.Duration
	WalletMessageMaxAge time.Duration
}

// Server hosts the auth service.
type Server struct {
	listener     net.Listener
	health       *platformgrpc.HealthServer
	store        *authsqlite.Store
	httpListener net.Listener
	httpServer   *http.Server
	cleanup      *cleaner
	interval     time.Duration
}

// New creates a configured auth server.
func New(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	store, err := openAuthStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	fail := func(err error) (*Server, error) {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	handler, cleanup, err := buildHTTP(store, cfg)
	if err != nil {
		return fail(err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fail(fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err))
	}

	return &Server{
		listener:     listener,
		health:       platformgrpc.NewHealthServer(HealthService),
		store:        store,
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		cleanup:  cleanup,
		interval: cfg.CleanupInterval,
	}, nil
}

func buildHTTP(store *authsqlite.Store, cfg Config) (http.Handler, *cleaner, error) {
	oauthConfig, err := oauth.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	mailConfig, err := mail.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	sessionConfig, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	linkConfig := magiclink.LoadConfigFromEnv()

	cookies := session.PolicyFor(cfg.Mode)
	sessions := session.NewManager(store, sessionConfig)
	issuer := verification.NewIssuer(store, linkConfig.TTL)
	exchange := oauth.NewExchange(oauthConfig, store)
	resolver := identity.NewResolver(store, issuer, magiclink.NewComposer(linkConfig), mail.New(mailConfig))

	api, err := httpapi.NewServer(httpapi.Dependencies{
		BaseURL:  oauthConfig.BaseURL,
		Exchange: exchange,
		Resolver: resolver,
		Sessions: sessions,
		Guests:   guest.NewBootstrapper(sessions, resolver, cookies),
		Wallets:  wallet.NewVerifier(cfg.WalletMessageMaxAge, time.Now),
		Cookies:  cookies,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("oauth providers enabled: %s", strings.Join(exchange.Providers(), ","))
	return api.Handler(), &cleaner{tokens: issuer, states: exchange, sessions: sessions}, nil
}

// Addr returns the gRPC health listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	s.StartCleanup(serverCtx, s.interval)

	log.Printf("auth health server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.health.Server().Serve(s.listener)
	}()

	log.Printf("auth HTTP server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()
	s.health.SetServing("", true)
	s.health.SetServing(HealthService, true)

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownHTTP()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		s.health.Shutdown()
		grpcErr := <-serveErr
		if errors.Is(err, http.ErrServerClosed) {
			return handleErr(grpcErr)
		}
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func openAuthStore(path string) (*authsqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close auth store: %v", err)
	}
}
