// Package server wires configuration, storage, services and the HTTP and
// gRPC transports into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/config"
	"github.com/dmitrijs2005/diagrams/internal/server/httpapi"
	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/diagrams/internal/server/services"

	gs "github.com/dmitrijs2005/diagrams/internal/server/grpc"
)

var (
	openDB         = repomanager.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	userService    *services.UserService
	diagramService *services.DiagramService
	exportService  *services.ExportService
	loginLimiter   *ratelimit.Limiter
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us, err := services.NewUserService(db, rm, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("user service init error: %w", err)
	}

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		userService:    us,
		diagramService: services.NewDiagramService(db, rm, logger),
		exportService:  services.NewExportService(db, rm, c, logger),
		loginLimiter:   ratelimit.FromConfig(c.LoginRatePerSecond, c.LoginRateBurst),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.userService, app.diagramService, app.exportService, app.logger, httpapi.Options{
		MaxBodyBytes: app.config.MaxBodyBytes,
		Limiter:      app.loginLimiter,
		Ping:         app.db.PingContext,
	})
	s := httpapi.NewServer(app.config.HTTPAddr, h, app.logger, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.userService, app.loginLimiter)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.config.RevocationPurgeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.userService.RunPurgeLoop(ctx, app.config.RevocationPurgeInterval)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
