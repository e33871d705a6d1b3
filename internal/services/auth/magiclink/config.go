package magiclink

import (
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/config"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTTL     = 30 * time.Minute
	defaultAppName = "Gatehouse"
)

// Config controls magic link construction and expiry.
type Config struct {
	BaseURL string        `env:"GATEHOUSE_BASE_URL"               envDefault:"http://localhost:8080"`
	TTL     time.Duration `env:"GATEHOUSE_VERIFICATION_TOKEN_TTL" envDefault:"30m"`
	AppName string        `env:"GATEHOUSE_APP_NAME"               envDefault:"Gatehouse"`
}

// LoadConfigFromEnv loads magic-link configuration, falling back to defaults
// for values that are missing or unparsable.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		cfg = Config{}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = defaultAppName
	}
	return cfg
}
