package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mkarlsen/knotscore/internal/errors"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
)

// TokenRepository defines the repository methods needed by TokenService
type TokenRepository interface {
	GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error)
	GetCompetitorByToken(ctx context.Context, token string) (*models.Competitor, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListNodes(ctx context.Context, eventID int64) ([]models.Node, error)
	ListCategoryNodes(ctx context.Context, eventID int64) ([]models.CategoryNode, error)
	ListAttemptsByCompetitor(ctx context.Context, competitorID int64) ([]models.Attempt, error)
	RotateCompetitorToken(ctx context.Context, competitorID int64, token string, entry models.AuditLogEntry) error
}

// TokenService manages the single active station-lookup token per
// competitor. Issuance is append-only history: rotating invalidates the
// prior token and the change is audit-logged, never silently replaced.
type TokenService struct {
	log      logger.Logger
	repo     TokenRepository
	newToken func() string
}

// NewTokenService creates a new TokenService
func NewTokenService(log logger.Logger, repo TokenRepository) *TokenService {
	return &TokenService{
		log:      log,
		repo:     repo,
		newToken: uuid.NewString,
	}
}

// IssueToken issues (or rotates) the competitor's access token. Admin only.
func (s *TokenService) IssueToken(ctx context.Context, actor models.Actor, competitorID int64) (string, error) {
	if actor.Role != models.RoleAdmin {
		return "", ErrTokenIssueNotPermitted
	}

	competitor, err := s.repo.GetCompetitor(ctx, competitorID)
	if err != nil {
		return "", notFoundOrInternal(err, "competitor not found")
	}
	if competitor.EventID != actor.EventID {
		return "", errors.NotFound("competitor not found")
	}

	token := s.newToken()

	entry := models.AuditLogEntry{
		EventID:      actor.EventID,
		Action:       models.AuditTokenIssued,
		CompetitorID: &competitor.ID,
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
		NewValue:     tokenSnapshot(&token),
	}
	if competitor.AccessToken != nil {
		entry.PreviousValue = tokenSnapshot(competitor.AccessToken)
	}

	if err := s.repo.RotateCompetitorToken(ctx, competitor.ID, token, entry); err != nil {
		return "", errors.Internal(err)
	}

	s.log.Info("Access token rotated",
		"competitor_id", competitor.ID, "issued_by", actor.UserID,
		"had_previous", competitor.AccessToken != nil)
	return token, nil
}

// StationOverview is what a station screen shows after a token lookup:
// the competitor, its category, the category's nodes in sequence order,
// and everything already recorded for the competitor.
type StationOverview struct {
	Competitor models.Competitor `json:"competitor"`
	Category   models.Category   `json:"category"`
	Nodes      []models.Node     `json:"nodes"`
	Attempts   []models.Attempt  `json:"attempts"`
}

// StationOverview resolves an access token to the competitor's station view.
func (s *TokenService) StationOverview(ctx context.Context, token string) (*StationOverview, error) {
	competitor, err := s.repo.GetCompetitorByToken(ctx, token)
	if err != nil {
		return nil, notFoundOrInternal(err, "unknown access token")
	}

	category, err := s.repo.GetCategory(ctx, competitor.CategoryID)
	if err != nil {
		return nil, notFoundOrInternal(err, "category not found")
	}

	nodes, err := s.repo.ListNodes(ctx, competitor.EventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	mappings, err := s.repo.ListCategoryNodes(ctx, competitor.EventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	attempts, err := s.repo.ListAttemptsByCompetitor(ctx, competitor.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	nodeByID := make(map[int64]models.Node, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}
	var assigned []models.Node
	for _, m := range mappings {
		if m.CategoryID != category.ID {
			continue
		}
		if n, ok := nodeByID[m.NodeID]; ok {
			assigned = append(assigned, n)
		}
	}

	// The token is not echoed back through the overview.
	safe := *competitor
	safe.AccessToken = nil

	return &StationOverview{
		Competitor: safe,
		Category:   *category,
		Nodes:      assigned,
		Attempts:   attempts,
	}, nil
}

func tokenSnapshot(token *string) json.RawMessage {
	raw, _ := json.Marshal(map[string]*string{"access_token": token})
	return raw
}
