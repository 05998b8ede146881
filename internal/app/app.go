package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkarlsen/knotscore/internal/config"
	"github.com/mkarlsen/knotscore/internal/handlers"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/repository"
	"github.com/mkarlsen/knotscore/internal/services"
	"github.com/mkarlsen/knotscore/internal/websocket"
	"github.com/mkarlsen/knotscore/pkg/metrics"
)

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      *config.Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	server   *http.Server
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg *config.Config) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Initialize services
	ledgerService := services.NewLedgerService(log, repo)
	rankingService := services.NewRankingService(log, repo)
	tokenService := services.NewTokenService(log, repo)
	catalogService := services.NewCatalogService(log, repo)

	// Initialize WebSocket hub and wire live ranking invalidations
	hub := websocket.New(log)
	hub.Start()
	ledgerService.SetBroadcaster(hub)

	m := metrics.New()
	rankingService.SetObserver(m)

	h := handlers.New(log, ledgerService, rankingService, tokenService, catalogService, hub, m, repo)

	return &App{
		log:      log,
		cfg:      cfg,
		handlers: h,
		repo:     repo,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Run starts the HTTP server and blocks until it stops.
func (a *App) Run() error {
	a.server = &http.Server{
		Addr:    a.cfg.Addr,
		Handler: a.Router(),
	}
	a.log.Info("Server starting", "addr", a.cfg.Addr, "db", a.cfg.DBPath)
	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	if closeErr := a.repo.Close(); err == nil {
		err = closeErr
	}
	return err
}
