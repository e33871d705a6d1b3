package oauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/config"
)

// Provider identifiers used in routes and persisted links.
const (
	ProviderGitHub  = "github"
	ProviderGoogle  = "google"
	ProviderDiscord = "discord"
)

// DefaultStateTTL bounds how long a user may sit on a provider consent page.
const DefaultStateTTL = 10 * time.Minute

// Config describes the OAuth login configuration.
type Config struct {
	BaseURL   string
	StateTTL  time.Duration
	Providers map[string]ProviderConfig
}

// ProviderConfig describes one external OAuth provider.
type ProviderConfig struct {
	ID           string
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	// EmailsURL is queried for a verified address when the profile lacks one.
	EmailsURL string
	Scopes    []string
}

type providerEnv struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	UserInfoURL  string   `env:"USERINFO_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

type oauthEnv struct {
	BaseURL  string        `env:"GATEHOUSE_BASE_URL"        envDefault:"http://localhost:8080"`
	StateTTL time.Duration `env:"GATEHOUSE_OAUTH_STATE_TTL" envDefault:"10m"`
	GitHub   providerEnv   `envPrefix:"GATEHOUSE_OAUTH_GITHUB_"`
	Google   providerEnv   `envPrefix:"GATEHOUSE_OAUTH_GOOGLE_"`
	Discord  providerEnv   `envPrefix:"GATEHOUSE_OAUTH_DISCORD_"`
}

var providerDefaults = map[string]ProviderConfig{
	ProviderGitHub: {
		Name:        "GitHub",
		AuthURL:     "https://github.com/login/oauth/authorize",
		TokenURL:    "https://github.com/login/oauth/access_token",
		UserInfoURL: "https://api.github.com/user",
		EmailsURL:   "https://api.github.com/user/emails",
		Scopes:      []string{"read:user", "user:email"},
	},
	ProviderGoogle: {
		Name:        "Google",
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:      []string{"openid", "email", "profile"},
	},
	ProviderDiscord: {
		Name:        "Discord",
		AuthURL:     "https://discord.com/oauth2/authorize",
		TokenURL:    "https://discord.com/api/oauth2/token",
		UserInfoURL: "https://discord.com/api/users/@me",
		Scopes:      []string{"identify", "email"},
	},
}

// LoadConfigFromEnv loads OAuth configuration from environment variables.
// A provider is enabled only when both its client id and secret are set.
func LoadConfigFromEnv() (Config, error) {
	var raw oauthEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("oauth config: %w", err)
	}

	cfg := Config{
		BaseURL:   strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/"),
		StateTTL:  raw.StateTTL,
		Providers: make(map[string]ProviderConfig),
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	for providerID, values := range map[string]providerEnv{
		ProviderGitHub:  raw.GitHub,
		ProviderGoogle:  raw.Google,
		ProviderDiscord: raw.Discord,
	} {
		if values.ClientID == "" || values.ClientSecret == "" {
			continue
		}
		cfg.Providers[providerID] = buildProvider(providerID, cfg.BaseURL, values)
	}
	return cfg, nil
}

func buildProvider(providerID, baseURL string, values providerEnv) ProviderConfig {
	provider := providerDefaults[providerID]
	provider.ID = providerID
	provider.ClientID = values.ClientID
	provider.ClientSecret = values.ClientSecret
	provider.RedirectURI = CallbackURL(baseURL, providerID)
	if values.AuthURL != "" {
		provider.AuthURL = values.AuthURL
	}
	if values.TokenURL != "" {
		provider.TokenURL = values.TokenURL
	}
	if values.UserInfoURL != "" {
		provider.UserInfoURL = values.UserInfoURL
	}
	if scopes := config.TrimCSV(values.Scopes); len(scopes) > 0 {
		provider.Scopes = scopes
	}
	return provider
}

// CallbackURL is the redirect URI registered with a provider.
func CallbackURL(baseURL, providerID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/auth/callback/" + providerID
}
