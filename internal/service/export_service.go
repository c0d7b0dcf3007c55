package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/export"
)

type quoteLister interface {
	List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, int, error)
}

var quoteExportHeaders = []string{"ID", "Name", "Email", "Service", "Status", "Notes", "Submitted"}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the filtered moderation list as CSV or PDF.
type ExportService struct {
	repo    quoteLister
	maxRows int
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs the service. maxRows <= 0 means 1000.
func NewExportService(repo quoteLister, maxRows int, logger *zap.Logger) *ExportService {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, maxRows: maxRows, logger: logger, now: time.Now}
}

// Export walks every page matching query, up to maxRows, and renders it.
// Page and perPage in the query are ignored.
func (s *ExportService) Export(ctx context.Context, query dto.QuoteListQuery, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	filter := QuoteFilterFromQuery(query)
	filter.PageSize = maxPerPage
	filter.Page = 1

	rows := make([]map[string]string, 0, maxPerPage)
	for len(rows) < s.maxRows {
		quotes, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quotes for export")
		}
		for _, q := range quotes {
			if len(rows) == s.maxRows {
				break
			}
			rows = append(rows, quoteExportRow(q))
		}
		if len(quotes) == 0 || filter.Page*filter.PageSize >= total {
			break
		}
		filter.Page++
	}

	data, err := export.Render(format, export.Dataset{Headers: quoteExportHeaders, Rows: rows}, "Quote requests")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("quotes exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))

	return &ExportFile{
		Filename:    fmt.Sprintf("quotes-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(rows),
	}, nil
}

func quoteExportRow(q models.Quote) map[string]string {
	return map[string]string{
		"ID":        q.ID,
		"Name":      q.Title,
		"Email":     q.Email,
		"Service":   q.Service,
		"Status":    string(q.Status),
		"Notes":     q.Content,
		"Submitted": q.CreatedAt.UTC().Format(time.RFC3339),
	}
}
