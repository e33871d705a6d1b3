package oauth

import (
	"reflect"
	"testing"
	"time"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, provider := range []string{"GITHUB", "GOOGLE", "DISCORD"} {
		for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "AUTH_URL", "TOKEN_URL", "USERINFO_URL", "SCOPES"} {
			t.Setenv("GATEHOUSE_OAUTH_"+provider+"_"+key, "")
		}
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GATEHOUSE_BASE_URL", "")
	t.Setenv("GATEHOUSE_OAUTH_STATE_TTL", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StateTTL != 10*time.Minute {
		t.Fatalf("StateTTL = %v, want %v", cfg.StateTTL, 10*time.Minute)
	}
	if len(cfg.Providers) != 0 {
		t.Fatalf("expected no providers, got %v", cfg.Providers)
	}
}

func TestLoadConfigFromEnvEnablesConfiguredProviders(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GATEHOUSE_BASE_URL", "https://app.example.com/")
	t.Setenv("GATEHOUSE_OAUTH_GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GATEHOUSE_OAUTH_GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("GATEHOUSE_OAUTH_DISCORD_CLIENT_ID", "dc-id")
	t.Setenv("GATEHOUSE_OAUTH_DISCORD_CLIENT_SECRET", "dc-secret")
	t.Setenv("GATEHOUSE_OAUTH_DISCORD_SCOPES", " identify , ,email,guilds ")
	t.Setenv("GATEHOUSE_OAUTH_GOOGLE_CLIENT_ID", "only-id")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, ok := cfg.Providers[ProviderGoogle]; ok {
		t.Fatal("expected google to stay disabled without a secret")
	}

	github, ok := cfg.Providers[ProviderGitHub]
	if !ok {
		t.Fatal("expected github provider")
	}
	if github.RedirectURI != "https://app.example.com/api/auth/callback/github" {
		t.Fatalf("unexpected redirect uri %q", github.RedirectURI)
	}
	if github.TokenURL != "https://github.com/login/oauth/access_token" || github.EmailsURL == "" {
		t.Fatalf("expected github defaults, got %+v", github)
	}
	if !reflect.DeepEqual(github.Scopes, []string{"read:user", "user:email"}) {
		t.Fatalf("unexpected github scopes %v", github.Scopes)
	}

	discord := cfg.Providers[ProviderDiscord]
	if !reflect.DeepEqual(discord.Scopes, []string{"identify", "email", "guilds"}) {
		t.Fatalf("unexpected discord scopes %v", discord.Scopes)
	}
}

func TestLoadConfigFromEnvEndpointOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GATEHOUSE_OAUTH_GOOGLE_CLIENT_ID", "id")
	t.Setenv("GATEHOUSE_OAUTH_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GATEHOUSE_OAUTH_GOOGLE_TOKEN_URL", "http://127.0.0.1:9999/token")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	google := cfg.Providers[ProviderGoogle]
	if google.TokenURL != "http://127.0.0.1:9999/token" {
		t.Fatalf("expected token url override, got %q", google.TokenURL)
	}
	if google.AuthURL != "https://accounts.google.com/o/oauth2/v2/auth" {
		t.Fatalf("expected default auth url, got %q", google.AuthURL)
	}
}

func TestLoadConfigFromEnvRejectsBadDuration(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GATEHOUSE_OAUTH_STATE_TTL", "soon")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected duration parse error")
	}
}
