package services

import (
	"context"
	"time"

	"github.com/mkarlsen/knotscore/internal/errors"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/scoring"
)

// RankingRepository defines the repository methods needed by RankingService
type RankingRepository interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListCategories(ctx context.Context, eventID int64) ([]models.Category, error)
	ListNodes(ctx context.Context, eventID int64) ([]models.Node, error)
	ListCategoryNodes(ctx context.Context, eventID int64) ([]models.CategoryNode, error)
	ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error)
	ListAttemptsByEvent(ctx context.Context, eventID int64) ([]models.Attempt, error)
}

// RankingService serves the derived ranking views. Each query loads a
// fresh snapshot of the ledger and recomputes from scratch; there is no
// cached ranking state to invalidate.
type RankingService struct {
	log      logger.Logger
	repo     RankingRepository
	observer RankingObserver
}

// NewRankingService creates a new RankingService
func NewRankingService(log logger.Logger, repo RankingRepository) *RankingService {
	return &RankingService{log: log, repo: repo}
}

// SetObserver wires the ranking query histogram. Optional; nil means no
// observations.
func (s *RankingService) SetObserver(o RankingObserver) {
	s.observer = o
}

// NodeRankings returns per-node rankings for the event, optionally
// filtered to one category code.
func (s *RankingService) NodeRankings(ctx context.Context, eventID int64, categoryCode string) ([]scoring.NodeRanking, error) {
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rankings := scoring.NodeRankings(*snap)
	s.observe("node_rankings", len(rankings), time.Since(start))
	if categoryCode == "" {
		return rankings, nil
	}
	filtered := rankings[:0]
	for _, r := range rankings {
		if r.CategoryCode == categoryCode {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// CategoryLeaderboard returns the overall leaderboard per category,
// computed over the nodes that count to the overall score.
func (s *RankingService) CategoryLeaderboard(ctx context.Context, eventID int64) ([]scoring.LeaderboardEntry, error) {
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.timed("category_leaderboard", func() []scoring.LeaderboardEntry {
		return scoring.CategoryLeaderboard(*snap)
	}), nil
}

// RelayLeaderboard returns the leaderboard restricted to relay nodes.
func (s *RankingService) RelayLeaderboard(ctx context.Context, eventID int64) ([]scoring.LeaderboardEntry, error) {
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.timed("relay_leaderboard", func() []scoring.LeaderboardEntry {
		return scoring.RelayLeaderboard(*snap)
	}), nil
}

func (s *RankingService) timed(view string, compute func() []scoring.LeaderboardEntry) []scoring.LeaderboardEntry {
	start := time.Now()
	entries := compute()
	s.observe(view, len(entries), time.Since(start))
	return entries
}

func (s *RankingService) observe(view string, entries int, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveRankingQuery(view, elapsed)
	}
	s.log.Debug("Ranking view computed", "view", view, "entries", entries, "elapsed", elapsed)
}

// snapshot loads the full ledger and catalog state for one event.
func (s *RankingService) snapshot(ctx context.Context, eventID int64) (*scoring.Snapshot, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}

	categories, err := s.repo.ListCategories(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	nodes, err := s.repo.ListNodes(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	categoryNodes, err := s.repo.ListCategoryNodes(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	competitors, err := s.repo.ListCompetitors(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	attempts, err := s.repo.ListAttemptsByEvent(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &scoring.Snapshot{
		EventID:       eventID,
		Categories:    categories,
		Nodes:         nodes,
		CategoryNodes: categoryNodes,
		Competitors:   competitors,
		Attempts:      attempts,
	}, nil
}
