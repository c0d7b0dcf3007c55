package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/quote-desk-api/internal/models"
)

const quoteColumns = `id, title, content, email, service, status, created_at, updated_at`

// QueryObserver receives timings for store queries.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// QuoteRepository persists quotes in PostgreSQL.
type QuoteRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewQuoteRepository constructs the repository. observer may be nil.
func NewQuoteRepository(db *sqlx.DB, observer QueryObserver) *QuoteRepository {
	return &QuoteRepository{db: db, observer: observer}
}

// Create inserts a new quote. ID, status and timestamps are filled when empty.
func (r *QuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	defer r.observe("quotes.create", time.Now())
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	if quote.Status == "" {
		quote.Status = models.QuoteStatusPending
	}
	now := time.Now().UTC()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now
	const query = `INSERT INTO quotes (` + quoteColumns + `)
VALUES (:id, :title, :content, :email, :service, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quote); err != nil {
		return fmt.Errorf("create quote: %w", err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows when the quote does not exist.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	defer r.observe("quotes.get", time.Now())
	const query = `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	var quote models.Quote
	if err := r.db.GetContext(ctx, &quote, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	return &quote, nil
}

// List returns one page of quotes matching the filter plus the total match count.
func (r *QuoteRepository) List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, int, error) {
	defer r.observe("quotes.list", time.Now())
	conditions := []string{"status = ANY($1)"}
	args := []interface{}{pq.Array(statusStrings(filter.Statuses))}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(content) LIKE $%d)", len(args), len(args)))
	}
	whereClause := strings.Join(conditions, " AND ")

	orderBy := "created_at"
	if filter.SortBy == models.QuoteSortTitle {
		orderBy = "title"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	listQuery := fmt.Sprintf("SELECT %s FROM quotes WHERE %s ORDER BY %s %s, id %s LIMIT %d OFFSET %d",
		quoteColumns, whereClause, orderBy, sortOrder, sortOrder, filter.PageSize, filter.Offset())

	quotes := make([]models.Quote, 0, filter.PageSize)
	if err := r.db.SelectContext(ctx, &quotes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quotes WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count quotes: %w", err)
	}
	return quotes, total, nil
}

// CountByStatus returns the per-status totals.
func (r *QuoteRepository) CountByStatus(ctx context.Context) (models.QuoteCounts, error) {
	defer r.observe("quotes.count_by_status", time.Now())
	var rows []struct {
		Status models.QuoteStatus `db:"status"`
		Total  int                `db:"total"`
	}
	const query = `SELECT status, COUNT(*) AS total FROM quotes GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return models.QuoteCounts{}, fmt.Errorf("count quotes by status: %w", err)
	}
	var counts models.QuoteCounts
	for _, row := range rows {
		counts.Add(row.Status, row.Total)
	}
	return counts, nil
}

// UpdateStatus sets the moderation status. sql.ErrNoRows when nothing matched.
func (r *QuoteRepository) UpdateStatus(ctx context.Context, id string, status models.QuoteStatus) error {
	defer r.observe("quotes.update_status", time.Now())
	const query = `UPDATE quotes SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	return requireAffected(result, "update quote status")
}

// UpdateTitle renames the quote. sql.ErrNoRows when nothing matched.
func (r *QuoteRepository) UpdateTitle(ctx context.Context, id, title string) error {
	defer r.observe("quotes.update_title", time.Now())
	const query = `UPDATE quotes SET title = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update quote title: %w", err)
	}
	return requireAffected(result, "update quote title")
}

// Delete permanently removes the quote row. sql.ErrNoRows when nothing matched.
func (r *QuoteRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("quotes.delete", time.Now())
	result, err := r.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	return requireAffected(result, "delete quote")
}

func (r *QuoteRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func statusStrings(statuses []models.QuoteStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
