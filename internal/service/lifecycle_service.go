package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
)

type quoteMutator interface {
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	UpdateStatus(ctx context.Context, id string, status models.QuoteStatus) error
	Delete(ctx context.Context, id string) error
}

type actionTokenVerifier interface {
	Verify(ctx context.Context, token string, actor *models.JWTClaims, action models.QuoteAction, ids []string) error
}

// LifecycleConfig holds lifecycle switches.
type LifecycleConfig struct {
	// StrictPurge only purges trashed quotes; others are skipped.
	StrictPurge bool
}

// LifecycleService is the only writer of quote status. It applies a batch
// action id by id; each id commits on its own.
type LifecycleService struct {
	repo    quoteMutator
	caps    CapabilityChecker
	tokens  actionTokenVerifier
	audit   auditWriter
	cache   countsInvalidator
	metrics *MetricsService
	config  LifecycleConfig
	logger  *zap.Logger
}

// NewLifecycleService constructs the controller. audit, cache and metrics may be nil.
func NewLifecycleService(repo quoteMutator, caps CapabilityChecker, tokens actionTokenVerifier, audit auditWriter, cache countsInvalidator, metrics *MetricsService, config LifecycleConfig, logger *zap.Logger) *LifecycleService {
	if caps == nil {
		caps = NewRoleCapabilities()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		repo:    repo,
		caps:    caps,
		tokens:  tokens,
		audit:   audit,
		cache:   cache,
		metrics: metrics,
		config:  config,
		logger:  logger,
	}
}

// Apply runs req.Action over req.IDs. Validation, capability and token checks
// all happen before the first write; any failure there leaves the store untouched.
func (s *LifecycleService) Apply(ctx context.Context, actor *models.JWTClaims, req dto.QuoteActionRequest) (*dto.QuoteActionResult, error) {
	action := models.QuoteAction(strings.ToLower(strings.TrimSpace(string(req.Action))))
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown action")
	}
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids are required")
	}

	for _, id := range ids {
		if !s.caps.CanEdit(actor, id) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to moderate quote "+id)
		}
	}
	if err := s.tokens.Verify(ctx, req.Token, actor, action, ids); err != nil {
		s.logger.Warn("action token rejected",
			zap.String("action", string(action)),
			zap.String("user_id", actor.UserID),
			zap.Error(err))
		return nil, err
	}

	result := &dto.QuoteActionResult{
		RedirectStatus: redirectStatus(action, req.StatusView),
		Affected:       []string{},
		Skipped:        []string{},
		Failed:         []string{},
	}

	for _, id := range ids {
		switch s.applyOne(ctx, actor, action, id) {
		case OutcomeSuccess:
			result.Affected = append(result.Affected, id)
		case OutcomeSkipped:
			result.Skipped = append(result.Skipped, id)
		default:
			result.Failed = append(result.Failed, id)
		}
	}
	result.Success = len(result.Failed) == 0

	s.metrics.RecordQuoteAction(action, OutcomeSuccess, len(result.Affected))
	s.metrics.RecordQuoteAction(action, OutcomeSkipped, len(result.Skipped))
	s.metrics.RecordQuoteAction(action, OutcomeFailed, len(result.Failed))

	if len(result.Affected) > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, quoteCountsCacheKey)
	}

	s.logger.Info("quote action applied",
		zap.String("action", string(action)),
		zap.String("user_id", actor.UserID),
		zap.Int("affected", len(result.Affected)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *LifecycleService) applyOne(ctx context.Context, actor *models.JWTClaims, action models.QuoteAction, id string) string {
	quote, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutcomeSkipped
		}
		s.logger.Error("load quote for action", zap.String("quote_id", id), zap.Error(err))
		return OutcomeFailed
	}

	next, purge, ok := nextStatus(action, quote.Status, s.config.StrictPurge)
	if !ok {
		s.logger.Debug("quote action not applicable",
			zap.String("quote_id", id),
			zap.String("action", string(action)),
			zap.String("status", string(quote.Status)))
		return OutcomeSkipped
	}

	if purge {
		err = s.repo.Delete(ctx, id)
	} else {
		err = s.repo.UpdateStatus(ctx, id, next)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutcomeSkipped
		}
		s.logger.Error("apply quote action",
			zap.String("quote_id", id),
			zap.String("action", string(action)),
			zap.Error(err))
		return OutcomeFailed
	}

	s.recordAudit(ctx, actor, action, id, quote.Status, next)
	return OutcomeSuccess
}

// nextStatus returns the target status for action from current. purge is true
// when the quote must be deleted; ok is false when the action does not apply.
func nextStatus(action models.QuoteAction, current models.QuoteStatus, strictPurge bool) (next models.QuoteStatus, purge bool, ok bool) {
	switch action {
	case models.QuoteActionApprove:
		if current != models.QuoteStatusTrashed {
			return models.QuoteStatusApproved, false, true
		}
	case models.QuoteActionReject:
		if current != models.QuoteStatusTrashed {
			return models.QuoteStatusRejected, false, true
		}
	case models.QuoteActionTrash:
		if current != models.QuoteStatusTrashed {
			return models.QuoteStatusTrashed, false, true
		}
	case models.QuoteActionRestore:
		if current == models.QuoteStatusTrashed {
			return models.QuoteStatusPending, false, true
		}
	case models.QuoteActionPurge:
		if !strictPurge || current == models.QuoteStatusTrashed {
			return "", true, true
		}
	}
	return "", false, false
}

func redirectStatus(action models.QuoteAction, view string) string {
	if action == models.QuoteActionPurge {
		return string(models.QuoteStatusTrashed)
	}
	if status, ok := models.ParseQuoteStatus(view); ok {
		return string(status)
	}
	return StatusViewAll
}

// uniqueIDs trims and de-duplicates ids, keeping request order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *LifecycleService) recordAudit(ctx context.Context, actor *models.JWTClaims, action models.QuoteAction, id string, from, to models.QuoteStatus) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]string{"status": string(from)})
	newValues := []byte(`{"deleted":true}`)
	if action != models.QuoteActionPurge {
		newValues, _ = json.Marshal(map[string]string{"status": string(to)})
	}
	quoteID := id
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionFor(action),
		Resource:   "quote",
		ResourceID: &quoteID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record quote audit log", zap.String("quote_id", id), zap.Error(err))
	}
}
