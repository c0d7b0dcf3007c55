package dto

import (
	"time"

	"github.com/noah-isme/quote-desk-api/internal/models"
)

// SubmitQuoteRequest is the public quote form payload.
type SubmitQuoteRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Service string `json:"service" form:"service"`
	Notes   string `json:"notes" form:"notes"`
}

// SubmitQuoteResult is returned to the submitter.
type SubmitQuoteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// QuoteListQuery mirrors the moderation list query string. Status is kept raw
// so unknown values can fall back to the default view.
type QuoteListQuery struct {
	Status    string `form:"status"`
	Search    string `form:"search"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
	Page      int    `form:"page"`
	PerPage   int    `form:"perPage"`
}

// QuoteListResult is one page of the moderation queue.
type QuoteListResult struct {
	Items      []models.Quote `json:"items"`
	TotalCount int            `json:"totalCount"`
	TotalPages int            `json:"totalPages"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
}

// ActionTokenRequest asks for a replay-protection token scoped to an action and id set.
type ActionTokenRequest struct {
	Action models.QuoteAction `json:"action"`
	IDs    []string           `json:"ids"`
}

// ActionTokenResponse carries the issued token.
type ActionTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// QuoteActionRequest applies a lifecycle action to a set of quotes.
// StatusView is the list filter the caller was looking at.
type QuoteActionRequest struct {
	Action     models.QuoteAction `json:"action"`
	IDs        []string           `json:"ids"`
	Token      string             `json:"token"`
	StatusView string             `json:"status"`
}

// QuoteActionResult reports the per-id outcome of a batch action.
type QuoteActionResult struct {
	Success        bool     `json:"success"`
	RedirectStatus string   `json:"redirectStatus"`
	Affected       []string `json:"affected"`
	Skipped        []string `json:"skipped"`
	Failed         []string `json:"failed"`
}

// RenameQuoteRequest updates the requester name shown as the quote title.
type RenameQuoteRequest struct {
	Title string `json:"title"`
}
