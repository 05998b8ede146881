package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkarlsen/knotscore/internal/models"
)

// stationOverviewResponse mirrors services.StationOverview with display
// times on the attempts.
type stationOverviewResponse struct {
	Competitor models.Competitor `json:"competitor"`
	Category   models.Category   `json:"category"`
	Nodes      []models.Node     `json:"nodes"`
	Attempts   []AttemptResponse `json:"attempts"`
}

// StationOverview handles GET /api/station/{token}
func (h *Handlers) StationOverview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, BadRequest("Missing token parameter"))
		return
	}

	overview, err := h.Tokens.StationOverview(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, stationOverviewResponse{
		Competitor: overview.Competitor,
		Category:   overview.Category,
		Nodes:      overview.Nodes,
		Attempts:   newAttemptResponses(overview.Attempts),
	})
}
