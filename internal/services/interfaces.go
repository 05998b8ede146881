package services

import (
	"context"
	"time"

	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/scoring"
)

// LedgerServicer defines the attempt ledger operations
type LedgerServicer interface {
	RecordAttempt(ctx context.Context, actor models.Actor, in RecordAttemptInput) (*models.Attempt, error)
	AmendAttempt(ctx context.Context, actor models.Actor, attemptID int64, result models.Result, note string) (*models.Attempt, error)
	AuditTrail(ctx context.Context, actor models.Actor, eventID int64) ([]models.AuditLogEntry, error)
	SetBroadcaster(b Broadcaster)
}

// RankingServicer defines the derived ranking views
type RankingServicer interface {
	NodeRankings(ctx context.Context, eventID int64, categoryCode string) ([]scoring.NodeRanking, error)
	CategoryLeaderboard(ctx context.Context, eventID int64) ([]scoring.LeaderboardEntry, error)
	RelayLeaderboard(ctx context.Context, eventID int64) ([]scoring.LeaderboardEntry, error)
	SetObserver(o RankingObserver)
}

// TokenServicer defines competitor access-token operations
type TokenServicer interface {
	IssueToken(ctx context.Context, actor models.Actor, competitorID int64) (string, error)
	StationOverview(ctx context.Context, token string) (*StationOverview, error)
}

// CatalogServicer defines event catalog administration
type CatalogServicer interface {
	CreateEvent(ctx context.Context, slug, name string, startsAt, endsAt time.Time) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	CreateCategory(ctx context.Context, eventID int64, code, name string, displayOrder int) (*models.Category, error)
	ListCategories(ctx context.Context, eventID int64) ([]models.Category, error)
	CreateNode(ctx context.Context, node models.Node) (*models.Node, error)
	ListNodes(ctx context.Context, eventID int64) ([]models.Node, error)
	AssignNodeToCategory(ctx context.Context, categoryID, nodeID int64, sequence int) error
	CreateCompetitor(ctx context.Context, c models.Competitor) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error)
}

// Broadcaster pushes ranking invalidations to connected clients.
type Broadcaster interface {
	RankingsChanged(eventID, nodeID int64, categoryCode string)
}

// RankingObserver records how long a derived ranking view took to compute.
type RankingObserver interface {
	ObserveRankingQuery(view string, elapsed time.Duration)
}

// Ensure concrete types implement interfaces
var (
	_ LedgerServicer  = (*LedgerService)(nil)
	_ RankingServicer = (*RankingService)(nil)
	_ TokenServicer   = (*TokenService)(nil)
	_ CatalogServicer = (*CatalogService)(nil)
)
