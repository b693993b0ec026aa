package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chronocoders/ecash/api"
	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/issuer"
	"github.com/chronocoders/ecash/ledger"
	"github.com/chronocoders/ecash/metrics"
	"github.com/chronocoders/ecash/migrations/postgres"
	"github.com/chronocoders/ecash/redemption"
	"github.com/chronocoders/ecash/serverconfig"
	"github.com/chronocoders/ecash/spentset"

	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" database/sql driver
)

var srvLog = ecashlog.SubLogger(ecashlog.SubsystemServer)

// server is the top-level daemon object: it owns the Postgres and Redis
// connections, the issuer engine, and the HTTP listener, and exposes the
// started/shutdown atomic-guard lifecycle the teacher's own server uses.
type server struct {
	started  int32 // atomic
	shutdown int32 // atomic

	cfg *serverconfig.Config

	db    *sql.DB
	redis *redis.Client

	httpServer *http.Server
	listener   net.Listener

	wg sync.WaitGroup
}

// newServer wires up every C1-C10 component from cfg: it opens the
// Postgres and Redis connections, runs migrations, builds the issuer
// engine, and constructs the HTTP router.
func newServer(cfg *serverconfig.Config) (*server, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: pinging database: %w", err)
	}

	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: running migrations: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping().Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: pinging redis: %w", err)
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: loading signing key: %w", err)
	}

	denominations, err := cfg.ParsedDenominations()
	if err != nil {
		db.Close()
		return nil, err
	}

	engine := issuer.NewEngine(issuer.Config{
		Signer:        signer,
		Denominations: denominations,
		Currency:      cfg.Currency,
		InstitutionID: cfg.InstitutionID,
		Validity:      cfg.TokenValidity(),
	})

	led := ledger.NewPostgresLedger(db)
	spent := spentset.NewRedisSet(redisClient, "ecash:spent:")
	coord := redemption.New(engine, spent, led, cfg.SpentSetTTL())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	apiServer := api.New(engine, coord, led, spent, m)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: binding %s: %w", cfg.ListenAddr(), err)
	}

	return &server{
		cfg:        cfg,
		db:         db,
		redis:      redisClient,
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
	}, nil
}

// Start starts the HTTP listener. Safe to call once; subsequent calls are
// no-ops, matching the teacher's server.Start guard.
func (s *server) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		srvLog.Infof("server: listening on %s", s.listener.Addr())
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			srvLog.Errorf("server: http server exited: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down, then closes the database and
// redis connections, matching the teacher's server.Stop guard-and-drain
// pattern.
func (s *server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		srvLog.Errorf("server: graceful shutdown failed: %v", err)
	}

	s.wg.Wait()

	if err := s.redis.Close(); err != nil {
		srvLog.Errorf("server: closing redis client: %v", err)
	}
	if err := s.db.Close(); err != nil {
		srvLog.Errorf("server: closing database: %v", err)
	}

	return nil
}

// WaitForShutdown blocks until every server goroutine has exited.
func (s *server) WaitForShutdown() {
	s.wg.Wait()
}
