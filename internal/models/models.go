package models

import (
	"encoding/json"
	"time"
)

// MaxAttemptCentiseconds is the submission ceiling for a timed attempt:
// twenty minutes expressed in centiseconds.
const MaxAttemptCentiseconds = 20 * 60 * 100

// Event is a single competition instance, addressed by slug.
type Event struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Category is one bracket of an event (e.g. an age group). Every
// competitor belongs to exactly one category within its event.
type Category struct {
	ID           int64  `json:"id"`
	EventID      int64  `json:"event_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// Node is a competition station. CountsToOverall controls whether its
// placements feed the category overall score; IsRelay marks it for the
// separate relay leaderboard. The two flags are independent.
type Node struct {
	ID              int64  `json:"id"`
	EventID         int64  `json:"event_id"`
	Name            string `json:"name"`
	Sequence        int    `json:"sequence"`
	IsRelay         bool   `json:"is_relay"`
	CountsToOverall bool   `json:"counts_to_overall"`
	MaxCentiseconds *int   `json:"max_centiseconds,omitempty"`
}

// CategoryNode assigns a node to a category with a per-category sequence.
type CategoryNode struct {
	CategoryID int64 `json:"category_id"`
	NodeID     int64 `json:"node_id"`
	Sequence   int   `json:"sequence"`
}

// Competitor belongs to one event and one category. AccessToken is the
// single active station-lookup token; rotation replaces it and is
// audit-logged.
type Competitor struct {
	ID          int64   `json:"id"`
	EventID     int64   `json:"event_id"`
	CategoryID  int64   `json:"category_id"`
	Name        string  `json:"name"`
	StartNumber *int    `json:"start_number,omitempty"`
	AccessToken *string `json:"-"`
}

// Attempt is one recorded try by a competitor at a node. At most one row
// exists per (event, competitor, node, attempt number); attempt 2 requires
// a locked attempt 1.
type Attempt struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	CompetitorID  int64     `json:"competitor_id"`
	NodeID        int64     `json:"node_id"`
	AttemptNumber int       `json:"attempt_number"`
	Result        Result    `json:"result"`
	Locked        bool      `json:"locked"`
	Note          string    `json:"note,omitempty"`
	RecordedBy    int64     `json:"recorded_by"`
	RecordedRole  Role      `json:"recorded_role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AuditAction identifies the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditAttemptCreated AuditAction = "attempt_created"
	AuditAttemptUpdated AuditAction = "attempt_updated"
	AuditTokenIssued    AuditAction = "token_issued"
)

// AuditLogEntry is an immutable record of a single mutation. The
// repository offers no update or delete path for these rows.
type AuditLogEntry struct {
	ID            int64           `json:"id"`
	EventID       int64           `json:"event_id"`
	Action        AuditAction     `json:"action"`
	AttemptID     *int64          `json:"attempt_id,omitempty"`
	CompetitorID  *int64          `json:"competitor_id,omitempty"`
	PreviousValue json.RawMessage `json:"previous_value,omitempty"`
	NewValue      json.RawMessage `json:"new_value"`
	ActorUserID   int64           `json:"actor_user_id"`
	ActorRole     Role            `json:"actor_role"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Role is the authorization role carried by an actor context.
type Role string

const (
	RoleJudge      Role = "judge"
	RoleCalculator Role = "calculator"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleJudge, RoleCalculator, RoleAdmin:
		return true
	}
	return false
}

// Actor is the trusted identity context handed to the core by the auth
// front end. The core never authenticates; it only enforces this scoping.
type Actor struct {
	UserID               int64
	Role                 Role
	EventID              int64
	AllowedCategoryCodes []string
	AssignedNodeIDs      []int64
}

// MayRecordCategory reports whether the actor's category scope covers the
// given category code.
func (a Actor) MayRecordCategory(code string) bool {
	for _, c := range a.AllowedCategoryCodes {
		if c == code {
			return true
		}
	}
	return false
}

// MayRecordNode reports whether the actor may record attempts at the given
// node. Only judges carry a node assignment; calculator and admin roles
// operate event-wide.
func (a Actor) MayRecordNode(nodeID int64) bool {
	if a.Role != RoleJudge {
		return true
	}
	for _, id := range a.AssignedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// MayAmend reports whether the actor may correct existing attempts.
func (a Actor) MayAmend() bool {
	return a.Role == RoleCalculator || a.Role == RoleAdmin
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
