// Package server initializes and runs the token server: it opens the
// PostgreSQL pool, applies migrations, builds the services and serves them
// over HTTP until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/mailtoken/internal/logging"
	"github.com/dmitrijs2005/mailtoken/internal/server/config"
	"github.com/dmitrijs2005/mailtoken/internal/server/httpserver"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mailtoken/internal/server/services"
)

// Startup bounds for OpenDB. Variables so tests can shorten them.
var (
	pingTimeout    = 10 * time.Second
	migrateTimeout = 2 * time.Minute
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	userService  *services.UserService
	tokenService *services.TokenService
	registry     *prometheus.Registry
}

// OpenDB opens the pgx-backed pool described by c, applies pool limits,
// verifies connectivity and, when enabled, runs migrations. The ping and
// the migrations each run under their own deadline.
func OpenDB(ctx context.Context, c *config.Config, rm repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	db.SetMaxOpenConns(c.DatabaseMaxConns)
	db.SetMaxIdleConns(c.DatabaseMaxConns)
	db.SetConnMaxLifetime(c.DatabaseConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if c.RunMigrations {
		mctx, cancel := context.WithTimeout(ctx, migrateTimeout)
		defer cancel()
		if err := rm.RunMigrations(mctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migration error: %w", err)
		}
	}

	return db, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if c.AuthSecret == "" {
		logger.Warn(ctx, "server secret is empty, token issuance will fail")
	}

	rm := repomanager.NewPostgresRepositoryManager()

	db, err := OpenDB(ctx, c, rm)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "Database ready", "max_conns", c.DatabaseMaxConns, "migrations", c.RunMigrations)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(db, "mailtoken"),
	)

	us := services.NewUserService(db, rm)
	ts := services.NewTokenService(rm.Users(db), c)

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		userService:  us,
		tokenService: ts,
		registry:     registry,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpserver.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.tokenService, app.db, app.registry, app.config.RequestTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the pool.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
