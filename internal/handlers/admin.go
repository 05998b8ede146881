package handlers

import (
	"net/http"

	"github.com/mkarlsen/knotscore/internal/models"
)

// CreateEvent handles POST /api/admin/events
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	event, err := h.Catalog.CreateEvent(r.Context(), req.Slug, req.Name, req.StartsAt, req.EndsAt)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, event)
}

// CreateCategory handles POST /api/admin/categories
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	category, err := h.Catalog.CreateCategory(r.Context(), req.EventID, req.Code, req.Name, req.DisplayOrder)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, category)
}

// ListCategories handles GET /api/admin/events/{id}/categories
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	categories, err := h.Catalog.ListCategories(r.Context(), eventID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, categories)
}

// CreateNode handles POST /api/admin/nodes
func (h *Handlers) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	node, err := h.Catalog.CreateNode(r.Context(), models.Node{
		EventID:         req.EventID,
		Name:            req.Name,
		Sequence:        req.Sequence,
		IsRelay:         req.IsRelay,
		CountsToOverall: req.CountsToOverall,
		MaxCentiseconds: req.MaxCentiseconds,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, node)
}

// ListNodes handles GET /api/admin/events/{id}/nodes
func (h *Handlers) ListNodes(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	nodes, err := h.Catalog.ListNodes(r.Context(), eventID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, nodes)
}

// AssignNode handles POST /api/admin/categories/{id}/nodes
func (h *Handlers) AssignNode(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req AssignNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Catalog.AssignNodeToCategory(r.Context(), categoryID, req.NodeID, req.Sequence); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CreateCompetitor handles POST /api/admin/competitors
func (h *Handlers) CreateCompetitor(w http.ResponseWriter, r *http.Request) {
	var req CreateCompetitorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	competitor, err := h.Catalog.CreateCompetitor(r.Context(), models.Competitor{
		EventID:     req.EventID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		StartNumber: req.StartNumber,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, competitor)
}

// ListCompetitors handles GET /api/admin/events/{id}/competitors
func (h *Handlers) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	competitors, err := h.Catalog.ListCompetitors(r.Context(), eventID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, competitors)
}

// IssueToken handles POST /api/admin/competitors/{id}/token
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, Unauthorized("Missing actor context"))
		return
	}

	competitorID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := h.Tokens.IssueToken(r.Context(), actor, competitorID)
	if err != nil {
		respondError(w, err)
		return
	}

	h.Metrics.TokenIssued()
	respondCreated(w, TokenResponse{CompetitorID: competitorID, AccessToken: token})
}
