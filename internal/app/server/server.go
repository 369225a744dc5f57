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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouselabs/gatehouse/internal/account"
	"github.com/gatehouselabs/gatehouse/internal/challenge"
	"github.com/gatehouselabs/gatehouse/internal/events"
	"github.com/gatehouselabs/gatehouse/internal/httpapi"
	"github.com/gatehouselabs/gatehouse/internal/passkey"
	"github.com/gatehouselabs/gatehouse/internal/platform/config"
	"github.com/gatehouselabs/gatehouse/internal/platform/otel"
	"github.com/gatehouselabs/gatehouse/internal/servicegrant"
	"github.com/gatehouselabs/gatehouse/internal/session"
	"github.com/gatehouselabs/gatehouse/internal/storage/sqlite"
)

// Config holds server-level settings. Component configuration (relying
// party, challenge TTL, grants) loads from env inside the components.
type Config struct {
	Addr       string        `env:"GATEHOUSE_ADDR"        envDefault:":8080"`
	DBPath     string        `env:"GATEHOUSE_DB_PATH"     envDefault:"data/gatehouse.db"`
	RedisAddr  string        `env:"GATEHOUSE_REDIS_ADDR"`
	SessionTTL time.Duration `env:"GATEHOUSE_SESSION_TTL" envDefault:"720h"`
}

// LoadConfigFromEnv returns server configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{
			Addr:       ":8080",
			DBPath:     filepath.Join("data", "gatehouse.db"),
			SessionTTL: session.DefaultTTL,
		}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	return cfg
}

// Server hosts the authentication HTTP API and the outbox relay.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	store           *sqlite.Store
	relay           *events.Relay
	shutdownTracing func(context.Context) error
}

// New creates a configured server listening on cfg.Addr. Redis, when
// configured, backs both the challenge store and the event publisher;
// otherwise both stay in-process.
func New(ctx context.Context, cfg Config) (*Server, error) {
	shutdownTracing, err := otel.Setup(ctx, "gatehouse")
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	passkeyCfg := passkey.LoadConfigFromEnv()

	var challenges challenge.Store
	var publisher message.Publisher
	logger := watermill.NewStdLogger(false, false)
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		challenges = challenge.NewRedisStore(client, passkeyCfg.ChallengeTTL)
		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("create redis publisher: %w", err)
		}
	} else {
		challenges = challenge.NewMemoryStore(passkeyCfg.ChallengeTTL)
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
	}

	recorder := events.NewRecorder(store)
	relay := events.NewRelay(store, publisher)
	issuer := session.NewIssuer(store, cfg.SessionTTL)
	accounts := account.NewService(store, store, recorder)
	engine := passkey.NewEngine(passkeyCfg, store, store, challenges, issuer, recorder)

	var grants *servicegrant.Config
	if grantCfg, grantErr := servicegrant.LoadConfigFromEnv(nil); grantErr != nil {
		log.Printf("admin surface disabled: %v", grantErr)
	} else {
		grants = &grantCfg
	}

	mux := http.NewServeMux()
	httpapi.New(accounts, engine, issuer, store, grants).Register(mux)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	return &Server{
		listener:        listener,
		httpServer:      &http.Server{Handler: mux},
		store:           store,
		relay:           relay,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()
	defer s.flushTracing()

	go func() {
		if err := s.relay.Run(serverCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox relay stopped: %v", err)
		}
	}()

	log.Printf("server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

func (s *Server) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}

func (s *Server) flushTracing() {
	if s.shutdownTracing == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdownTracing(flushCtx); err != nil {
		log.Printf("shutdown tracing: %v", err)
	}
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "gatehouse.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
