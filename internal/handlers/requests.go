package handlers

import (
	"time"

	"github.com/mkarlsen/knotscore/internal/models"
)

// RecordAttemptRequest is the body for POST /api/attempts.
type RecordAttemptRequest struct {
	CompetitorID  int64         `json:"competitor_id"`
	NodeID        int64         `json:"node_id"`
	AttemptNumber int           `json:"attempt_number"`
	Result        models.Result `json:"result"`
	Note          string        `json:"note,omitempty"`
}

// AmendAttemptRequest is the body for PUT /api/attempts/{id}.
type AmendAttemptRequest struct {
	Result models.Result `json:"result"`
	Note   string        `json:"note,omitempty"`
}

// CreateEventRequest is the body for POST /api/admin/events.
type CreateEventRequest struct {
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// CreateCategoryRequest is the body for POST /api/admin/categories.
type CreateCategoryRequest struct {
	EventID      int64  `json:"event_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// CreateNodeRequest is the body for POST /api/admin/nodes.
type CreateNodeRequest struct {
	EventID         int64  `json:"event_id"`
	Name            string `json:"name"`
	Sequence        int    `json:"sequence"`
	IsRelay         bool   `json:"is_relay"`
	CountsToOverall bool   `json:"counts_to_overall"`
	MaxCentiseconds *int   `json:"max_centiseconds,omitempty"`
}

// AssignNodeRequest is the body for POST /api/admin/categories/{id}/nodes.
type AssignNodeRequest struct {
	NodeID   int64 `json:"node_id"`
	Sequence int   `json:"sequence"`
}

// CreateCompetitorRequest is the body for POST /api/admin/competitors.
type CreateCompetitorRequest struct {
	EventID     int64  `json:"event_id"`
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	StartNumber *int   `json:"start_number,omitempty"`
}
