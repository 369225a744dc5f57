package passkey

import (
	"time"

	"github.com/gatehouselabs/gatehouse/internal/platform/branding"
	"github.com/gatehouselabs/gatehouse/internal/platform/config"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string        `env:"GATEHOUSE_WEBAUTHN_RP_DISPLAY_NAME"`
	RPID          string        `env:"GATEHOUSE_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"GATEHOUSE_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	ChallengeTTL  time.Duration `env:"GATEHOUSE_WEBAUTHN_CHALLENGE_TTL"   envDefault:"5m"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{
			RPDisplayName: branding.AppName,
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:8080"},
			ChallengeTTL:  5 * time.Minute,
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = branding.AppName
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8080"}
	}
	return cfg
}
