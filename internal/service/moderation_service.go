package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/sanitize"
)

const (
	quoteCountsCacheKey = "quotes:counts"

	// StatusViewAll is the list view that shows every non-trashed quote.
	StatusViewAll = "all"

	defaultPerPage = 20
	maxPerPage     = 100
)

type quoteReader interface {
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, int, error)
	CountByStatus(ctx context.Context) (models.QuoteCounts, error)
	UpdateTitle(ctx context.Context, id, title string) error
}

type countsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ModerationConfig tunes list and cache behaviour.
type ModerationConfig struct {
	CountsTTL time.Duration
}

// ModerationService serves the admin queue: listing, counts, detail and rename.
type ModerationService struct {
	repo      quoteReader
	cache     countsCache
	caps      CapabilityChecker
	audit     auditWriter
	sanitizer *sanitize.Sanitizer
	config    ModerationConfig
	logger    *zap.Logger
}

// NewModerationService constructs the service. cache and audit may be nil.
func NewModerationService(repo quoteReader, cache countsCache, caps CapabilityChecker, audit auditWriter, sanitizer *sanitize.Sanitizer, config ModerationConfig, logger *zap.Logger) *ModerationService {
	if caps == nil {
		caps = NewRoleCapabilities()
	}
	if sanitizer == nil {
		sanitizer = sanitize.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{repo: repo, cache: cache, caps: caps, audit: audit, sanitizer: sanitizer, config: config, logger: logger}
}

// QuoteFilterFromQuery normalises a raw list query. Unknown statuses and "all"
// select the active statuses; unknown sort columns fall back to newest first.
func QuoteFilterFromQuery(q dto.QuoteListQuery) models.QuoteFilter {
	filter := models.QuoteFilter{
		Statuses:  models.ActiveQuoteStatuses,
		Search:    strings.TrimSpace(q.Search),
		SortBy:    models.QuoteSortDate,
		SortOrder: "desc",
		Page:      q.Page,
		PageSize:  q.PerPage,
	}
	if status, ok := models.ParseQuoteStatus(q.Status); ok {
		filter.Statuses = []models.QuoteStatus{status}
	}

	switch strings.ToLower(strings.TrimSpace(q.SortBy)) {
	case models.QuoteSortTitle:
		filter.SortBy = models.QuoteSortTitle
		filter.SortOrder = normalizeSortOrder(q.SortOrder)
	case models.QuoteSortDate:
		filter.SortOrder = normalizeSortOrder(q.SortOrder)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPerPage
	}
	if filter.PageSize > maxPerPage {
		filter.PageSize = maxPerPage
	}
	return filter
}

func normalizeSortOrder(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "asc") {
		return "asc"
	}
	return "desc"
}

// List returns one page of the moderation queue.
func (s *ModerationService) List(ctx context.Context, query dto.QuoteListQuery) (*dto.QuoteListResult, error) {
	filter := QuoteFilterFromQuery(query)
	quotes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quotes")
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)
	return &dto.QuoteListResult{
		Items:      quotes,
		TotalCount: total,
		TotalPages: pagination.TotalPages,
		Page:       filter.Page,
		PerPage:    filter.PageSize,
	}, nil
}

// Counts returns per-status totals, from cache when possible.
func (s *ModerationService) Counts(ctx context.Context) (*models.QuoteCounts, error) {
	if s.cache != nil {
		var cached models.QuoteCounts
		if hit, _ := s.cache.Get(ctx, quoteCountsCacheKey, &cached); hit {
			return &cached, nil
		}
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count quotes")
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, quoteCountsCacheKey, counts, s.config.CountsTTL)
	}
	return &counts, nil
}

// Get returns a single quote.
func (s *ModerationService) Get(ctx context.Context, id string) (*models.Quote, error) {
	quote, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quote not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quote")
	}
	return quote, nil
}

// Rename changes the requester name shown as the quote title. Status is untouched.
func (s *ModerationService) Rename(ctx context.Context, actor *models.JWTClaims, id string, req dto.RenameQuoteRequest) (*models.Quote, error) {
	title := s.sanitizer.Line(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if len([]rune(title)) > 200 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must be at most 200 characters")
	}
	if !s.caps.CanEdit(actor, id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit this quote")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTitle(ctx, id, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quote not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename quote")
	}

	s.recordRename(ctx, actor, id, current.Title, title)
	current.Title = title
	return current, nil
}

func (s *ModerationService) recordRename(ctx context.Context, actor *models.JWTClaims, id, oldTitle, newTitle string) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]string{"title": oldTitle})
	newValues, _ := json.Marshal(map[string]string{"title": newTitle})
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionQuoteRename,
		Resource:   "quote",
		ResourceID: &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record rename audit log", zap.String("quote_id", id), zap.Error(err))
	}
}
