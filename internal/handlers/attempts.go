package handlers

import (
	"net/http"

	"github.com/mkarlsen/knotscore/internal/services"
)

// RecordAttempt handles POST /api/attempts
func (h *Handlers) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, Unauthorized("Missing actor context"))
		return
	}

	var req RecordAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	attempt, err := h.Ledger.RecordAttempt(r.Context(), actor, services.RecordAttemptInput{
		CompetitorID:  req.CompetitorID,
		NodeID:        req.NodeID,
		AttemptNumber: req.AttemptNumber,
		Result:        req.Result,
		Note:          req.Note,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	h.Metrics.AttemptRecorded()
	respondCreated(w, newAttemptResponse(*attempt))
}

// AmendAttempt handles PUT /api/attempts/{id}
func (h *Handlers) AmendAttempt(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, Unauthorized("Missing actor context"))
		return
	}

	attemptID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req AmendAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	attempt, err := h.Ledger.AmendAttempt(r.Context(), actor, attemptID, req.Result, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}

	h.Metrics.AttemptAmended()
	respondOK(w, newAttemptResponse(*attempt))
}

// AuditTrail handles GET /api/admin/events/{id}/audit
func (h *Handlers) AuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, Unauthorized("Missing actor context"))
		return
	}

	eventID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	entries, err := h.Ledger.AuditTrail(r.Context(), actor, eventID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, entries)
}
