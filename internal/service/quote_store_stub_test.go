package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/quote-desk-api/internal/models"
)

// quoteStoreStub is an in-memory quote store shared by the service tests.
type quoteStoreStub struct {
	quotes     map[string]*models.Quote
	seq        int
	createErr  error
	updateErrs map[string]error
	deleteErrs map[string]error
	listErr    error
	lastFilter models.QuoteFilter
	countCalls int
	updates    []string
}

func newQuoteStoreStub() *quoteStoreStub {
	return &quoteStoreStub{
		quotes:     map[string]*models.Quote{},
		updateErrs: map[string]error{},
		deleteErrs: map[string]error{},
	}
}

func (s *quoteStoreStub) seed(id string, status models.QuoteStatus) *models.Quote {
	s.seq++
	q := &models.Quote{
		ID:        id,
		Title:     "Customer " + id,
		Content:   "notes for " + id,
		Email:     id + "@example.com",
		Service:   "Plumbing",
		Status:    status,
		CreatedAt: time.Date(2026, 1, 1, 0, s.seq, 0, 0, time.UTC),
	}
	s.quotes[id] = q
	return q
}

func (s *quoteStoreStub) Create(_ context.Context, quote *models.Quote) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	if quote.ID == "" {
		quote.ID = fmt.Sprintf("q-%d", s.seq)
	}
	quote.CreatedAt = time.Now().UTC()
	stored := *quote
	s.quotes[quote.ID] = &stored
	return nil
}

func (s *quoteStoreStub) GetByID(_ context.Context, id string) (*models.Quote, error) {
	q, ok := s.quotes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *q
	return &found, nil
}

func (s *quoteStoreStub) List(_ context.Context, filter models.QuoteFilter) ([]models.Quote, int, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	allowed := map[models.QuoteStatus]bool{}
	for _, st := range filter.Statuses {
		allowed[st] = true
	}
	needle := strings.ToLower(filter.Search)
	var matched []models.Quote
	for _, q := range s.quotes {
		if !allowed[q.Status] {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(q.Title+" "+q.Content), needle) {
			continue
		}
		matched = append(matched, *q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *quoteStoreStub) CountByStatus(_ context.Context) (models.QuoteCounts, error) {
	s.countCalls++
	var counts models.QuoteCounts
	for _, q := range s.quotes {
		counts.Add(q.Status, 1)
	}
	return counts, nil
}

func (s *quoteStoreStub) UpdateStatus(_ context.Context, id string, status models.QuoteStatus) error {
	if err := s.updateErrs[id]; err != nil {
		return err
	}
	q, ok := s.quotes[id]
	if !ok {
		return sql.ErrNoRows
	}
	q.Status = status
	s.updates = append(s.updates, id)
	return nil
}

func (s *quoteStoreStub) UpdateTitle(_ context.Context, id, title string) error {
	q, ok := s.quotes[id]
	if !ok {
		return sql.ErrNoRows
	}
	q.Title = title
	return nil
}

func (s *quoteStoreStub) Delete(_ context.Context, id string) error {
	if err := s.deleteErrs[id]; err != nil {
		return err
	}
	if _, ok := s.quotes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.quotes, id)
	return nil
}
