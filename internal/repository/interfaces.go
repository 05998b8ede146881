package repository

import (
	"context"
	"time"

	"github.com/mkarlsen/knotscore/internal/models"
)

// EventRepository defines event data operations
type EventRepository interface {
	CreateEvent(ctx context.Context, slug, name string, startsAt, endsAt time.Time) (int64, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	UpdateEvent(ctx context.Context, id int64, name string, startsAt, endsAt time.Time) error
}

// CatalogRepository defines category and node data operations
type CatalogRepository interface {
	CreateCategory(ctx context.Context, eventID int64, code, name string, displayOrder int) (int64, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context, eventID int64) ([]models.Category, error)
	CreateNode(ctx context.Context, node models.Node) (int64, error)
	GetNode(ctx context.Context, id int64) (*models.Node, error)
	ListNodes(ctx context.Context, eventID int64) ([]models.Node, error)
	AssignNodeToCategory(ctx context.Context, categoryID, nodeID int64, sequence int) error
	ListCategoryNodes(ctx context.Context, eventID int64) ([]models.CategoryNode, error)
}

// CompetitorRepository defines competitor data operations
type CompetitorRepository interface {
	CreateCompetitor(ctx context.Context, c models.Competitor) (int64, error)
	GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error)
	GetCompetitorByToken(ctx context.Context, token string) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error)
	RotateCompetitorToken(ctx context.Context, competitorID int64, token string, entry models.AuditLogEntry) error
}

// AttemptRepository defines attempt data operations. Creates and updates
// write their audit entry in the same transaction as the data mutation.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, id int64) (*models.Attempt, error)
	FindAttempt(ctx context.Context, competitorID, nodeID int64, attemptNumber int) (*models.Attempt, error)
	ListAttemptsByEvent(ctx context.Context, eventID int64) ([]models.Attempt, error)
	ListAttemptsByCompetitor(ctx context.Context, competitorID int64) ([]models.Attempt, error)
	CreateAttempt(ctx context.Context, a models.Attempt, entry models.AuditLogEntry) (*models.Attempt, error)
	UpdateAttempt(ctx context.Context, a models.Attempt, entry models.AuditLogEntry) error
}

// AuditRepository defines read access to the append-only audit trail.
// There is deliberately no update or delete operation.
type AuditRepository interface {
	ListAuditEntries(ctx context.Context, eventID int64) ([]models.AuditLogEntry, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	EventRepository
	CatalogRepository
	CompetitorRepository
	AttemptRepository
	AuditRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
