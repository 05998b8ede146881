package services

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"github.com/mkarlsen/knotscore/internal/errors"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// CatalogServiceRepository defines the repository methods needed by CatalogService
type CatalogServiceRepository interface {
	repository.EventRepository
	repository.CatalogRepository
	CreateCompetitor(ctx context.Context, c models.Competitor) (int64, error)
	ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error)
}

// CatalogService administers the competition catalog: events, categories,
// nodes, the category-node assignments, and competitors.
type CatalogService struct {
	log  logger.Logger
	repo CatalogServiceRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(log logger.Logger, repo CatalogServiceRepository) *CatalogService {
	return &CatalogService{log: log, repo: repo}
}

// CreateEvent creates an event with a unique slug.
func (s *CatalogService) CreateEvent(ctx context.Context, slug, name string, startsAt, endsAt time.Time) (*models.Event, error) {
	if !slugPattern.MatchString(slug) {
		return nil, errors.InvalidInput("slug must be lowercase letters, digits and hyphens")
	}
	if name == "" {
		return nil, errors.InvalidInput("event name must not be empty")
	}
	if endsAt.Before(startsAt) {
		return nil, errors.InvalidInput("event must not end before it starts")
	}

	id, err := s.repo.CreateEvent(ctx, slug, name, startsAt, endsAt)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflictf("event slug %q already exists", slug)
		}
		return nil, errors.Internal(err)
	}

	s.log.Info("Event created", "event_id", id, "slug", slug)
	return s.getEvent(ctx, id)
}

// GetEventBySlug resolves an event by its slug.
func (s *CatalogService) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	event, err := s.repo.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}
	return event, nil
}

// CreateCategory adds a category to an event; codes are unique per event.
func (s *CatalogService) CreateCategory(ctx context.Context, eventID int64, code, name string, displayOrder int) (*models.Category, error) {
	if code == "" || name == "" {
		return nil, errors.InvalidInput("category code and name must not be empty")
	}
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}

	id, err := s.repo.CreateCategory(ctx, eventID, code, name, displayOrder)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflictf("category code %q already exists", code)
		}
		return nil, errors.Internal(err)
	}
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return category, nil
}

// ListCategories lists an event's categories in display order.
func (s *CatalogService) ListCategories(ctx context.Context, eventID int64) ([]models.Category, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}
	categories, err := s.repo.ListCategories(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return categories, nil
}

// CreateNode adds a station to an event.
func (s *CatalogService) CreateNode(ctx context.Context, node models.Node) (*models.Node, error) {
	if node.Name == "" {
		return nil, errors.InvalidInput("node name must not be empty")
	}
	if node.MaxCentiseconds != nil && (*node.MaxCentiseconds <= 0 || *node.MaxCentiseconds > models.MaxAttemptCentiseconds) {
		return nil, errors.InvalidInput("node max time out of range")
	}
	if _, err := s.repo.GetEvent(ctx, node.EventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}

	id, err := s.repo.CreateNode(ctx, node)
	if err != nil {
		return nil, errors.Internal(err)
	}
	created, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return created, nil
}

// ListNodes lists an event's nodes in canonical sequence order.
func (s *CatalogService) ListNodes(ctx context.Context, eventID int64) ([]models.Node, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}
	nodes, err := s.repo.ListNodes(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return nodes, nil
}

// AssignNodeToCategory maps a node into a category's station sequence.
// Both must belong to the same event.
func (s *CatalogService) AssignNodeToCategory(ctx context.Context, categoryID, nodeID int64, sequence int) error {
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return notFoundOrInternal(err, "category not found")
	}
	node, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return notFoundOrInternal(err, "node not found")
	}
	if category.EventID != node.EventID {
		return errors.InvalidInput("category and node belong to different events")
	}

	if err := s.repo.AssignNodeToCategory(ctx, categoryID, nodeID, sequence); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return errors.Conflict("node already assigned to category")
		}
		return errors.Internal(err)
	}
	return nil
}

// CreateCompetitor registers a competitor in a category of the event.
// Start numbers are unique per event.
func (s *CatalogService) CreateCompetitor(ctx context.Context, c models.Competitor) (*models.Competitor, error) {
	if c.Name == "" {
		return nil, errors.InvalidInput("competitor name must not be empty")
	}
	category, err := s.repo.GetCategory(ctx, c.CategoryID)
	if err != nil {
		return nil, notFoundOrInternal(err, "category not found")
	}
	if category.EventID != c.EventID {
		return nil, errors.InvalidInput("category belongs to a different event")
	}

	id, err := s.repo.CreateCompetitor(ctx, c)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict("start number already taken")
		}
		return nil, errors.Internal(err)
	}
	c.ID = id

	s.log.Info("Competitor registered", "competitor_id", id, "event_id", c.EventID, "category", category.Code)
	return &c, nil
}

// ListCompetitors lists an event's competitors ordered by start number.
func (s *CatalogService) ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, notFoundOrInternal(err, "event not found")
	}
	competitors, err := s.repo.ListCompetitors(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return competitors, nil
}

func (s *CatalogService) getEvent(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return event, nil
}
