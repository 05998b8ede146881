package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mkarlsen/knotscore/internal/models"
)

// Identity headers injected by the auth front end after it has verified
// the caller. The core never sees credentials; it trusts these values and
// only enforces the scoping they describe.
const (
	HeaderActorUser       = "X-Actor-User"
	HeaderActorRole       = "X-Actor-Role"
	HeaderActorEvent      = "X-Actor-Event"
	HeaderActorCategories = "X-Actor-Categories"
	HeaderActorNodes      = "X-Actor-Nodes"
)

type contextKey int

const actorContextKey contextKey = iota

// requireActor parses the trusted identity headers into a models.Actor and
// rejects requests without a complete context.
func (h *Handlers) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromHeaders(r)
		if err != nil {
			respondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), actorContextKey, actor)))
	})
}

// requireRole gates a route group to specific roles. Must run after
// requireActor.
func (h *Handlers) requireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r.Context())
			if !ok {
				respondError(w, Unauthorized("Missing actor context"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, Forbidden("Role not permitted"))
		})
	}
}

func actorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	return actor, ok
}

func actorFromHeaders(r *http.Request) (models.Actor, error) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderActorUser), 10, 64)
	if err != nil {
		return models.Actor{}, Unauthorized("Missing or invalid actor user")
	}
	eventID, err := strconv.ParseInt(r.Header.Get(HeaderActorEvent), 10, 64)
	if err != nil {
		return models.Actor{}, Unauthorized("Missing or invalid actor event")
	}
	role := models.Role(r.Header.Get(HeaderActorRole))
	if !role.Valid() {
		return models.Actor{}, Unauthorized("Missing or invalid actor role")
	}

	actor := models.Actor{
		UserID:               userID,
		Role:                 role,
		EventID:              eventID,
		AllowedCategoryCodes: splitCSV(r.Header.Get(HeaderActorCategories)),
	}
	for _, field := range splitCSV(r.Header.Get(HeaderActorNodes)) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return models.Actor{}, Unauthorized("Invalid actor node assignment")
		}
		actor.AssignedNodeIDs = append(actor.AssignedNodeIDs, id)
	}
	return actor, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
