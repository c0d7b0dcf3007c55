package models

import (
	"strings"
	"time"
)

// QuoteStatus captures the moderation state of a quote request.
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusTrashed  QuoteStatus = "trashed"
)

// QuoteStatuses lists every valid status in display order.
var QuoteStatuses = []QuoteStatus{
	QuoteStatusPending,
	QuoteStatusApproved,
	QuoteStatusRejected,
	QuoteStatusTrashed,
}

// ActiveQuoteStatuses is the default moderation view; trashed quotes are hidden.
var ActiveQuoteStatuses = []QuoteStatus{
	QuoteStatusPending,
	QuoteStatusApproved,
	QuoteStatusRejected,
}

// Valid reports whether s is one of the four known statuses.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusApproved, QuoteStatusRejected, QuoteStatusTrashed:
		return true
	}
	return false
}

// ParseQuoteStatus normalises raw input. ok is false for empty, "all" and unknown values.
func ParseQuoteStatus(raw string) (QuoteStatus, bool) {
	s := QuoteStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// QuoteAction is a moderation verb applied by the lifecycle controller.
type QuoteAction string

const (
	QuoteActionApprove QuoteAction = "approve"
	QuoteActionReject  QuoteAction = "reject"
	QuoteActionTrash   QuoteAction = "trash"
	QuoteActionRestore QuoteAction = "restore"
	QuoteActionPurge   QuoteAction = "purge"
)

// Valid reports whether a is a supported action.
func (a QuoteAction) Valid() bool {
	switch a {
	case QuoteActionApprove, QuoteActionReject, QuoteActionTrash, QuoteActionRestore, QuoteActionPurge:
		return true
	}
	return false
}

// Quote is a stored quote request. Email and Service live on the same row so
// they never outlive the quote.
type Quote struct {
	ID        string      `db:"id" json:"id"`
	Title     string      `db:"title" json:"title"`
	Content   string      `db:"content" json:"content"`
	Email     string      `db:"email" json:"email"`
	Service   string      `db:"service" json:"service"`
	Status    QuoteStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// Quote sort columns.
const (
	QuoteSortTitle = "title"
	QuoteSortDate  = "date"
)

// QuoteFilter is the normalised store query. Statuses is never empty once it
// reaches a repository.
type QuoteFilter struct {
	Statuses  []QuoteStatus
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Offset returns the zero-based row offset for the page.
func (f QuoteFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// QuoteCounts holds the per-status totals; All excludes trashed quotes.
type QuoteCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Trashed  int `json:"trashed"`
	All      int `json:"all"`
}

// Add increments the bucket for status and keeps All in sync.
func (c *QuoteCounts) Add(status QuoteStatus, n int) {
	switch status {
	case QuoteStatusPending:
		c.Pending += n
	case QuoteStatusApproved:
		c.Approved += n
	case QuoteStatusRejected:
		c.Rejected += n
	case QuoteStatusTrashed:
		c.Trashed += n
	}
	c.All = c.Pending + c.Approved + c.Rejected
}
