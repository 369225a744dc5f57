package gatehouse

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/app/server"
)

// Config holds gatehouse command configuration.
type Config struct {
	Addr       string
	DBPath     string
	RedisAddr  string
	SessionTTL time.Duration
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config. Environment variables provide
// defaults; flags override them.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	defaults := server.LoadConfigFromEnv()
	cfg := Config{
		Addr:       envOrDefault(lookup, []string{"GATEHOUSE_ADDR"}, defaults.Addr),
		DBPath:     envOrDefault(lookup, []string{"GATEHOUSE_DB_PATH"}, defaults.DBPath),
		RedisAddr:  envOrDefault(lookup, []string{"GATEHOUSE_REDIS_ADDR"}, defaults.RedisAddr),
		SessionTTL: defaults.SessionTTL,
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The sqlite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "The redis address for challenges and events")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "The session lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the gatehouse server.
func Run(ctx context.Context, cfg Config) error {
	return server.Run(ctx, server.Config{
		Addr:       cfg.Addr,
		DBPath:     cfg.DBPath,
		RedisAddr:  cfg.RedisAddr,
		SessionTTL: cfg.SessionTTL,
	})
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
