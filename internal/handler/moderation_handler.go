package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/middleware"
	"github.com/noah-isme/quote-desk-api/internal/models"
	"github.com/noah-isme/quote-desk-api/internal/service"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/response"
)

type moderationService interface {
	List(ctx context.Context, query dto.QuoteListQuery) (*dto.QuoteListResult, error)
	Counts(ctx context.Context) (*models.QuoteCounts, error)
	Get(ctx context.Context, id string) (*models.Quote, error)
	Rename(ctx context.Context, actor *models.JWTClaims, id string, req dto.RenameQuoteRequest) (*models.Quote, error)
}

type lifecycleService interface {
	Apply(ctx context.Context, actor *models.JWTClaims, req dto.QuoteActionRequest) (*dto.QuoteActionResult, error)
}

type actionTokenIssuer interface {
	Issue(actor *models.JWTClaims, action models.QuoteAction, ids []string) (string, time.Time, error)
}

type exportService interface {
	Export(ctx context.Context, query dto.QuoteListQuery, format string) (*service.ExportFile, error)
}

// ModerationHandler exposes the admin quote queue.
type ModerationHandler struct {
	queue     moderationService
	lifecycle lifecycleService
	tokens    actionTokenIssuer
	exporter  exportService
}

// NewModerationHandler wires the moderation services to HTTP.
func NewModerationHandler(queue moderationService, lifecycle lifecycleService, tokens actionTokenIssuer, exporter exportService) *ModerationHandler {
	return &ModerationHandler{queue: queue, lifecycle: lifecycle, tokens: tokens, exporter: exporter}
}

// List godoc
// @Summary List quote requests
// @Tags Moderation
// @Produce json
// @Param status query string false "pending, approved, rejected, trashed or all"
// @Param search query string false "Substring of name or notes"
// @Param sortBy query string false "title or date"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page number"
// @Param perPage query int false "Items per page"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes [get]
func (h *ModerationHandler) List(c *gin.Context) {
	var query dto.QuoteListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.queue.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := models.NewPagination(result.Page, result.PerPage, result.TotalCount)
	response.JSON(c, http.StatusOK, result, pagination, middleware.ExtractMeta(c))
}

// Counts godoc
// @Summary Quote totals per status
// @Tags Moderation
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes/counts [get]
func (h *ModerationHandler) Counts(c *gin.Context) {
	counts, err := h.queue.Counts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Get godoc
// @Summary Quote detail
// @Tags Moderation
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes/{id} [get]
func (h *ModerationHandler) Get(c *gin.Context) {
	quote, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

// Rename godoc
// @Summary Rename quote requester
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param payload body dto.RenameQuoteRequest true "New title"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes/{id} [patch]
func (h *ModerationHandler) Rename(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RenameQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rename payload"))
		return
	}
	quote, err := h.queue.Rename(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

// ActionToken godoc
// @Summary Issue moderation action token
// @Description Token is bound to the caller, the action and the exact id set
// @Tags Moderation
// @Accept json
// @Produce json
// @Param payload body dto.ActionTokenRequest true "Action scope"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes/action-token [post]
func (h *ModerationHandler) ActionToken(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ActionTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action token payload"))
		return
	}
	action := models.QuoteAction(strings.ToLower(strings.TrimSpace(string(req.Action))))
	token, expiresAt, err := h.tokens.Issue(claims, action, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ActionTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// Actions godoc
// @Summary Apply a lifecycle action
// @Description Approve, reject, trash, restore or purge a set of quotes
// @Tags Moderation
// @Accept json
// @Produce json
// @Param payload body dto.QuoteActionRequest true "Action request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/quotes/actions [post]
func (h *ModerationHandler) Actions(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.QuoteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
		return
	}
	result, err := h.lifecycle.Apply(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export quote requests
// @Tags Moderation
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admin/quotes/export [get]
func (h *ModerationHandler) Export(c *gin.Context) {
	var query dto.QuoteListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
