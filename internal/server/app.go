// Package server initializes and runs the main application server.
// It opens the database, applies migrations, wires the relay services,
// and starts the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/telegraph-app/telegraph/internal/logging"
	"github.com/telegraph-app/telegraph/internal/server/config"
	"github.com/telegraph-app/telegraph/internal/server/httpapi"
	"github.com/telegraph-app/telegraph/internal/server/repositories/repomanager"
	"github.com/telegraph-app/telegraph/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	httpServer  *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	s := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(s)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	userService := services.NewUserService(db, rm, c)
	visibilityService := services.NewVisibilityService(db, rm)
	archiveService := services.NewArchiveService(db, rm, c)
	relayService := services.NewRelayService(db, rm, visibilityService, archiveService, logger)
	friendService := services.NewFriendService(db, rm)

	httpServer := httpapi.NewServer(c, logger,
		userService, relayService, visibilityService, friendService, archiveService)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		httpServer:  httpServer,
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

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	// The dispatch gate stays closed until the schema is in place.
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		app.logger.Error(ctx, "migration error", "error", err.Error())
		cancelFunc()
	} else {
		app.httpServer.SetReady()
		app.logger.Info(ctx, "App is ready")
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
