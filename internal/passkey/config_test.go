package passkey

import (
	"testing"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/platform/branding"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.RPID != "localhost" {
		t.Fatalf("RPID = %q, want %q", cfg.RPID, "localhost")
	}
	if cfg.RPDisplayName != branding.AppName {
		t.Fatalf("RPDisplayName = %q, want %q", cfg.RPDisplayName, branding.AppName)
	}
	if len(cfg.RPOrigins) != 1 || cfg.RPOrigins[0] != "http://localhost:8080" {
		t.Fatalf("RPOrigins = %v, want [%q]", cfg.RPOrigins, "http://localhost:8080")
	}
	if cfg.ChallengeTTL != 5*time.Minute {
		t.Fatalf("ChallengeTTL = %v, want %v", cfg.ChallengeTTL, 5*time.Minute)
	}
}

func TestLoadConfigFromEnvCustomRPID(t *testing.T) {
	t.Setenv("GATEHOUSE_WEBAUTHN_RP_ID", "example.com")
	cfg := LoadConfigFromEnv()
	if cfg.RPID != "example.com" {
		t.Fatalf("RPID = %q, want %q", cfg.RPID, "example.com")
	}
}

func TestLoadConfigFromEnvCustomRPName(t *testing.T) {
	t.Setenv("GATEHOUSE_WEBAUTHN_RP_DISPLAY_NAME", "My App")
	cfg := LoadConfigFromEnv()
	if cfg.RPDisplayName != "My App" {
		t.Fatalf("RPDisplayName = %q, want %q", cfg.RPDisplayName, "My App")
	}
}

func TestLoadConfigFromEnvCustomOrigins(t *testing.T) {
	t.Setenv("GATEHOUSE_WEBAUTHN_RP_ORIGINS", "https://a.com,https://b.com")
	cfg := LoadConfigFromEnv()
	if len(cfg.RPOrigins) != 2 {
		t.Fatalf("RPOrigins len = %d, want 2", len(cfg.RPOrigins))
	}
	if cfg.RPOrigins[0] != "https://a.com" || cfg.RPOrigins[1] != "https://b.com" {
		t.Fatalf("RPOrigins = %v", cfg.RPOrigins)
	}
}

func TestLoadConfigFromEnvValidChallengeTTL(t *testing.T) {
	t.Setenv("GATEHOUSE_WEBAUTHN_CHALLENGE_TTL", "10m")
	cfg := LoadConfigFromEnv()
	if cfg.ChallengeTTL != 10*time.Minute {
		t.Fatalf("ChallengeTTL = %v, want %v", cfg.ChallengeTTL, 10*time.Minute)
	}
}

func TestLoadConfigFromEnvInvalidChallengeTTL(t *testing.T) {
	t.Setenv("GATEHOUSE_WEBAUTHN_CHALLENGE_TTL", "bad-duration")
	cfg := LoadConfigFromEnv()
	if cfg.ChallengeTTL != 5*time.Minute {
		t.Fatalf("ChallengeTTL = %v, want %v", cfg.ChallengeTTL, 5*time.Minute)
	}
	if len(cfg.RPOrigins) == 0 {
		t.Fatal("expected origin defaults to survive a parse failure")
	}
}
