// Package auth parses auth command configuration and runs the service.
package auth

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/gatehouse/internal/platform/cmd"
	"github.com/louisbranch/gatehouse/internal/platform/config"
	platformgrpc "github.com/louisbranch/gatehouse/internal/platform/grpc"
	"github.com/louisbranch/gatehouse/internal/platform/timeouts"
	server "github.com/louisbranch/gatehouse/internal/services/auth/app"
)

// Config holds auth command configuration.
type Config struct {
	Port                int           `env:"GATEHOUSE_AUTH_PORT"               envDefault:"8083"`
	HTTPAddr            string        `env:"GATEHOUSE_AUTH_HTTP_ADDR"          envDefault:"localhost:8080"`
	DBPath              string        `env:"GATEHOUSE_AUTH_DB_PATH"            envDefault:"data/auth.db"`
	Mode                config.Mode   `env:"GATEHOUSE_ENV"                     envDefault:"dev"`
	CleanupInterval     time.Duration `env:"GATEHOUSE_CLEANUP_INTERVAL"        envDefault:"5m"`
	WalletMessageMaxAge time.Duration `env:"GATEHOUSE_WALLET_MESSAGE_MAX_AGE"  envDefault:"10m"`

	HealthCheck bool
}

// ParseConfig loads env defaults and applies flag overrides.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.IntVar(&cfg.Port, "port", 8083, "The auth gRPC health port")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "localhost:8080", "The auth HTTP server address")
	fs.StringVar(&cfg.DBPath, "db-path", "data/auth.db", "The auth SQLite database path")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe a running server's health and exit")
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auth server, or probes a running one when HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		probeCtx, cancel := context.WithTimeout(ctx, timeouts.HealthWait)
		defer cancel()
		if err := platformgrpc.Probe(probeCtx, fmt.Sprintf("localhost:%d", cfg.Port), server.HealthService); err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		return nil
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAuth, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Port:                cfg.Port,
			HTTPAddr:            cfg.HTTPAddr,
			DBPath:              cfg.DBPath,
			Mode:                cfg.Mode,
			CleanupInterval:     cfg.CleanupInterval,
			WalletMessageMaxAge: cfg.WalletMessageMaxAge,
		})
	})
}
