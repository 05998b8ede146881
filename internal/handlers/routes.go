package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkarlsen/knotscore/internal/models"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// observeRequests records per-request counters and latency.
func (h *Handlers) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Metrics.ObserveHTTPRequest(r.Method, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger) // Custom conditional HTTP logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.observeRequests)

	// Operational endpoints
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	// WebSocket
	r.Get("/ws", h.Hub.ServeWs)

	// Derived ranking views (public)
	r.Get("/api/events/{slug}/node-rankings", h.NodeRankings)
	r.Get("/api/events/{slug}/leaderboard", h.CategoryLeaderboard)
	r.Get("/api/events/{slug}/relay-leaderboard", h.RelayLeaderboard)

	// Station lookup by competitor token (public)
	r.Get("/api/station/{token}", h.StationOverview)

	// Ledger writes (any authenticated role; the service enforces scope)
	r.Group(func(r chi.Router) {
		r.Use(h.requireActor)
		r.Post("/api/attempts", h.RecordAttempt)
		r.Put("/api/attempts/{id}", h.AmendAttempt)
	})

	// Admin API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.requireActor)
		r.Use(h.requireRole(models.RoleAdmin))

		// Catalog
		r.Post("/api/admin/events", h.CreateEvent)
		r.Post("/api/admin/categories", h.CreateCategory)
		r.Get("/api/admin/events/{id}/categories", h.ListCategories)
		r.Post("/api/admin/nodes", h.CreateNode)
		r.Get("/api/admin/events/{id}/nodes", h.ListNodes)
		r.Post("/api/admin/categories/{id}/nodes", h.AssignNode)
		r.Post("/api/admin/competitors", h.CreateCompetitor)
		r.Get("/api/admin/events/{id}/competitors", h.ListCompetitors)

		// Tokens & audit
		r.Post("/api/admin/competitors/{id}/token", h.IssueToken)
		r.Get("/api/admin/events/{id}/audit", h.AuditTrail)
	})

	return r
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Pinger.Ping(r.Context()); err != nil {
		respondError(w, InternalError(err))
		return
	}
	respondOK(w, map[string]string{"status": "ok"})
}
