package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/sanitize"
)

const (
	submitSuccessMessage  = "Thank you! Your quote request has been submitted."
	emptyNotesPlaceholder = "(No notes provided)"
)

type quoteCreator interface {
	Create(ctx context.Context, quote *models.Quote) error
}

type quoteNotifier interface {
	NotifyNewQuote(ctx context.Context, n QuoteNotification) bool
}

type countsInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// submission is the sanitized form, validated before anything is stored.
type submission struct {
	Name    string `validate:"required,max=200"`
	Email   string `validate:"required,max=254,email"`
	Service string `validate:"required,max=200"`
	Notes   string `validate:"max=5000"`
}

// IntakeService turns public form submissions into pending quotes.
type IntakeService struct {
	repo      quoteCreator
	notifier  quoteNotifier
	cache     countsInvalidator
	sanitizer *sanitize.Sanitizer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewIntakeService constructs the intake flow. notifier and cache may be nil.
func NewIntakeService(repo quoteCreator, notifier quoteNotifier, cache countsInvalidator, sanitizer *sanitize.Sanitizer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *IntakeService {
	if sanitizer == nil {
		sanitizer = sanitize.New()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
		sanitizer: sanitizer,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit sanitizes and validates the form, stores a pending quote and notifies
// the desk. A failed notification does not fail the submission.
func (s *IntakeService) Submit(ctx context.Context, req dto.SubmitQuoteRequest) (*dto.SubmitQuoteResult, error) {
	in := submission{
		Name:    s.sanitizer.Line(req.Name),
		Email:   s.sanitizer.Email(req.Email),
		Service: s.sanitizer.Line(req.Service),
		Notes:   s.sanitizer.Text(req.Notes),
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, submissionErrorMessage(err))
	}

	content := in.Notes
	if content == "" {
		content = emptyNotesPlaceholder
	}

	quote := &models.Quote{
		Title:   in.Name,
		Content: content,
		Email:   in.Email,
		Service: in.Service,
		Status:  models.QuoteStatusPending,
	}
	if err := s.repo.Create(ctx, quote); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save quote request")
	}
	s.metrics.RecordQuoteSubmission()
	s.logger.Info("quote request submitted", zap.String("quote_id", quote.ID), zap.String("service", quote.Service))

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, quoteCountsCacheKey)
	}

	if s.notifier != nil {
		sent := s.notifier.NotifyNewQuote(ctx, QuoteNotification{
			QuoteID:     quote.ID,
			Name:        in.Name,
			Email:       in.Email,
			Service:     in.Service,
			Notes:       content,
			SubmittedAt: time.Now().UTC(),
		})
		if !sent {
			s.logger.Warn("quote notification not delivered", zap.String("quote_id", quote.ID))
		}
	}

	return &dto.SubmitQuoteResult{
		Success: true,
		Message: submitSuccessMessage,
		ID:      quote.ID,
	}, nil
}

// submissionErrorMessage names the offending fields for the form.
func submissionErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid quote request"
	}
	var missing, invalid []string
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			missing = append(missing, field)
		} else {
			invalid = append(invalid, field)
		}
	}
	switch {
	case len(missing) > 0:
		return fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	case len(invalid) > 0:
		return fmt.Sprintf("invalid fields: %s", strings.Join(invalid, ", "))
	}
	return "invalid quote request"
}
