package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mkarlsen/knotscore/internal/errors"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/repository"
)

// LedgerRepository defines the repository methods needed by LedgerService
type LedgerRepository interface {
	repository.AttemptRepository
	repository.AuditRepository
	GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	GetNode(ctx context.Context, id int64) (*models.Node, error)
}

// LedgerService enforces the attempt lifecycle: attempt 1 is created
// locked, attempt 2 requires a locked attempt 1, corrections are strictly
// update-in-place. Every successful mutation carries its audit entry in
// the same storage transaction.
type LedgerService struct {
	log         logger.Logger
	repo        LedgerRepository
	broadcaster Broadcaster
	now         func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(log logger.Logger, repo LedgerRepository) *LedgerService {
	return &LedgerService{
		log:  log,
		repo: repo,
		now:  time.Now,
	}
}

// SetBroadcaster wires the live-update hub. Optional; nil means no pushes.
func (s *LedgerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// RecordAttemptInput is a single attempt submission.
type RecordAttemptInput struct {
	CompetitorID  int64
	NodeID        int64
	AttemptNumber int
	Result        models.Result
	Note          string
}

// RecordAttempt validates a submission against the actor's scope and the
// lifecycle rules, then persists it locked. Preconditions are checked in a
// fixed order so each failure is distinct; a storage-level uniqueness
// violation from a concurrent writer surfaces as a conflict, never a retry.
func (s *LedgerService) RecordAttempt(ctx context.Context, actor models.Actor, in RecordAttemptInput) (*models.Attempt, error) {
	competitor, err := s.repo.GetCompetitor(ctx, in.CompetitorID)
	if err != nil {
		return nil, notFoundOrInternal(err, "competitor not found")
	}
	if competitor.EventID != actor.EventID {
		return nil, errors.NotFound("competitor not found")
	}

	category, err := s.repo.GetCategory(ctx, competitor.CategoryID)
	if err != nil {
		return nil, notFoundOrInternal(err, "category not found")
	}
	if !actor.MayRecordCategory(category.Code) {
		return nil, ErrCategoryNotPermitted
	}

	node, err := s.repo.GetNode(ctx, in.NodeID)
	if err != nil {
		return nil, notFoundOrInternal(err, "node not found")
	}
	if node.EventID != actor.EventID {
		return nil, errors.NotFound("node not found")
	}
	if !actor.MayRecordNode(node.ID) {
		return nil, ErrNodeNotAssigned
	}

	if err := s.checkLifecycle(ctx, in); err != nil {
		return nil, err
	}
	if err := validateResult(in.Result, node); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attempt := models.Attempt{
		EventID:       actor.EventID,
		CompetitorID:  in.CompetitorID,
		NodeID:        in.NodeID,
		AttemptNumber: in.AttemptNumber,
		Result:        in.Result,
		Locked:        true, // attempts are never provisional
		Note:          in.Note,
		RecordedBy:    actor.UserID,
		RecordedRole:  actor.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	entry, err := auditEntry(actor, models.AuditAttemptCreated, &attempt.CompetitorID, nil, attempt)
	if err != nil {
		return nil, errors.Internal(err)
	}

	created, err := s.repo.CreateAttempt(ctx, attempt, entry)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAttemptExists
		}
		return nil, errors.Internal(err)
	}

	s.log.Info("Attempt recorded",
		"attempt_id", created.ID, "competitor_id", created.CompetitorID,
		"node_id", created.NodeID, "attempt_number", created.AttemptNumber,
		"recorded_by", actor.UserID, "role", actor.Role)

	if s.broadcaster != nil {
		s.broadcaster.RankingsChanged(actor.EventID, node.ID, category.Code)
	}
	return created, nil
}

// AmendAttempt corrects an existing attempt in place. This is the
// calculator/admin capability: it is scoped by event membership only,
// applies no attempt-number transition rules, and always leaves the row
// locked.
func (s *LedgerService) AmendAttempt(ctx context.Context, actor models.Actor, attemptID int64, result models.Result, note string) (*models.Attempt, error) {
	if !actor.MayAmend() {
		return nil, ErrAmendNotPermitted
	}

	attempt, err := s.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFoundOrInternal(err, "attempt not found")
	}
	if attempt.EventID != actor.EventID {
		return nil, errors.NotFound("attempt not found")
	}

	node, err := s.repo.GetNode(ctx, attempt.NodeID)
	if err != nil {
		return nil, notFoundOrInternal(err, "node not found")
	}
	if err := validateResult(result, node); err != nil {
		return nil, err
	}

	updated := *attempt
	updated.Result = result
	updated.Note = note
	updated.Locked = true
	updated.UpdatedAt = s.now().UTC()

	entry, err := auditEntry(actor, models.AuditAttemptUpdated, &attempt.CompetitorID, attempt, updated)
	if err != nil {
		return nil, errors.Internal(err)
	}
	entry.AttemptID = &attempt.ID

	if err := s.repo.UpdateAttempt(ctx, updated, entry); err != nil {
		return nil, notFoundOrInternal(err, "attempt not found")
	}

	s.log.Info("Attempt amended",
		"attempt_id", attempt.ID, "competitor_id", attempt.CompetitorID,
		"node_id", attempt.NodeID, "amended_by", actor.UserID, "role", actor.Role)

	if s.broadcaster != nil {
		code := ""
		if competitor, err := s.repo.GetCompetitor(ctx, attempt.CompetitorID); err == nil {
			if category, err := s.repo.GetCategory(ctx, competitor.CategoryID); err == nil {
				code = category.Code
			}
		}
		s.broadcaster.RankingsChanged(actor.EventID, attempt.NodeID, code)
	}
	return &updated, nil
}

// AuditTrail lists the event's audit entries, newest first. Admin only.
func (s *LedgerService) AuditTrail(ctx context.Context, actor models.Actor, eventID int64) ([]models.AuditLogEntry, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAuditNotPermitted
	}
	if eventID != actor.EventID {
		return nil, ErrEventNotPermitted
	}
	entries, err := s.repo.ListAuditEntries(ctx, eventID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return entries, nil
}

// checkLifecycle enforces the per-(competitor, node) state machine:
// attempt 1 must not exist yet; attempt 2 requires a locked attempt 1 and
// no existing attempt 2.
func (s *LedgerService) checkLifecycle(ctx context.Context, in RecordAttemptInput) error {
	switch in.AttemptNumber {
	case 1:
		_, err := s.repo.FindAttempt(ctx, in.CompetitorID, in.NodeID, 1)
		if err == nil {
			return ErrAttemptOneExists
		}
		if !stderrors.Is(err, repository.ErrNotFound) {
			return errors.Internal(err)
		}
	case 2:
		first, err := s.repo.FindAttempt(ctx, in.CompetitorID, in.NodeID, 1)
		if stderrors.Is(err, repository.ErrNotFound) {
			return ErrAttemptOneMissingUnlocked
		}
		if err != nil {
			return errors.Internal(err)
		}
		if !first.Locked {
			return ErrAttemptOneMissingUnlocked
		}
		_, err = s.repo.FindAttempt(ctx, in.CompetitorID, in.NodeID, 2)
		if err == nil {
			return ErrAttemptTwoExists
		}
		if !stderrors.Is(err, repository.ErrNotFound) {
			return errors.Internal(err)
		}
	default:
		return ErrInvalidAttemptNumber
	}
	return nil
}

// validateResult applies the submission ceiling and the node's own cap to
// timed results. Fault results carry no time and pass through.
func validateResult(result models.Result, node *models.Node) error {
	switch result.Kind() {
	case models.ResultTime:
		cs, _ := result.Centiseconds()
		if cs < 0 || cs > models.MaxAttemptCentiseconds {
			return ErrTimeOutOfRange
		}
		if node.MaxCentiseconds != nil && cs > *node.MaxCentiseconds {
			return ErrTimeExceedsNodeLimit
		}
	case models.ResultFault:
		// nothing to check beyond construction
	default:
		return ErrResultRequired
	}
	return nil
}

// auditEntry builds an audit record with before/after snapshots. prev may
// be nil for creations.
func auditEntry(actor models.Actor, action models.AuditAction, competitorID *int64, prev, next interface{}) (models.AuditLogEntry, error) {
	entry := models.AuditLogEntry{
		EventID:      actor.EventID,
		Action:       action,
		CompetitorID: competitorID,
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
	}
	if prev != nil {
		raw, err := json.Marshal(prev)
		if err != nil {
			return entry, err
		}
		entry.PreviousValue = raw
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return entry, err
	}
	entry.NewValue = raw
	return entry, nil
}

// notFoundOrInternal maps repository.ErrNotFound to a NotFound application
// error and wraps everything else as internal.
func notFoundOrInternal(err error, msg string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(msg)
	}
	return errors.Internal(err)
}
