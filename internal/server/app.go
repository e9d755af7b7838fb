// Package server wires configuration, storage and services together and runs
// the HTTP API until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/accounthub/internal/dbx"
	"github.com/dmitrijs2005/accounthub/internal/logging"
	"github.com/dmitrijs2005/accounthub/internal/server/auth"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/dmitrijs2005/accounthub/internal/server/httpapi"
	"github.com/dmitrijs2005/accounthub/internal/server/media"
	"github.com/dmitrijs2005/accounthub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounthub/internal/server/services"
)

// openDB is a seam for tests.
var openDB = dbx.OpenDB

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// NewApp validates cfg, connects to the database, applies migrations and
// builds the HTTP server. On error every resource acquired so far is released.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.Env, os.Stdout)

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	storage, err := media.NewS3Storage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media storage: %w", err)
	}

	tokens := auth.NewTokenService(cfg)
	store := services.NewCredentialStore(db, m, cfg)
	sessions := services.NewSessionManager(db, m, store, tokens)
	guard := services.NewAuthGuard(tokens, store)
	accounts := services.NewAccountService(store, storage)

	srv := httpapi.NewServer(cfg, logger, sessions, accounts, guard, db)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(ctx, cancelFunc)

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err.Error())
	}

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "closing db", "error", cerr.Error())
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
