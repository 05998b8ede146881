package handlers

import (
	"context"

	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/services"
	"github.com/mkarlsen/knotscore/internal/websocket"
	"github.com/mkarlsen/knotscore/pkg/metrics"
)

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Log      logger.Logger
	Ledger   services.LedgerServicer
	Rankings services.RankingServicer
	Tokens   services.TokenServicer
	Catalog  services.CatalogServicer
	Hub      *websocket.Hub
	Metrics  *metrics.Manager
	Pinger   Pinger
}

// New creates a new Handlers instance
func New(
	log logger.Logger,
	ledger services.LedgerServicer,
	rankings services.RankingServicer,
	tokens services.TokenServicer,
	catalog services.CatalogServicer,
	hub *websocket.Hub,
	m *metrics.Manager,
	pinger Pinger,
) *Handlers {
	return &Handlers{
		Log:      log,
		Ledger:   ledger,
		Rankings: rankings,
		Tokens:   tokens,
		Catalog:  catalog,
		Hub:      hub,
		Metrics:  m,
		Pinger:   pinger,
	}
}
