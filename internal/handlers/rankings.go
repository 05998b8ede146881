package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NodeRankings handles GET /api/events/{slug}/node-rankings[?category=code]
func (h *Handlers) NodeRankings(w http.ResponseWriter, r *http.Request) {
	event, err := h.Catalog.GetEventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}

	rankings, err := h.Rankings.NodeRankings(r.Context(), event.ID, r.URL.Query().Get("category"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, newNodeRankingResponses(rankings))
}

// CategoryLeaderboard handles GET /api/events/{slug}/leaderboard
func (h *Handlers) CategoryLeaderboard(w http.ResponseWriter, r *http.Request) {
	event, err := h.Catalog.GetEventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}

	entries, err := h.Rankings.CategoryLeaderboard(r.Context(), event.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, newLeaderboardResponses(entries))
}

// RelayLeaderboard handles GET /api/events/{slug}/relay-leaderboard
func (h *Handlers) RelayLeaderboard(w http.ResponseWriter, r *http.Request) {
	event, err := h.Catalog.GetEventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}

	entries, err := h.Rankings.RelayLeaderboard(r.Context(), event.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, newLeaderboardResponses(entries))
}
