package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/middleware"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/response"
)

type intakeService interface {
	Submit(ctx context.Context, req dto.SubmitQuoteRequest) (*dto.SubmitQuoteResult, error)
}

// QuoteHandler serves the public quote request form.
type QuoteHandler struct {
	intake intakeService
}

// NewQuoteHandler constructs the handler.
func NewQuoteHandler(intake intakeService) *QuoteHandler {
	return &QuoteHandler{intake: intake}
}

// FormToken godoc
// @Summary Issue form CSRF token
// @Description Returns the token the quote form must echo in the X-CSRF-Token header
// @Tags Quotes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quotes/form-token [get]
func (h *QuoteHandler) FormToken(c *gin.Context) {
	token := middleware.CSRFToken(c)
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "form protection unavailable"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "header": middleware.CSRFHeader}, nil)
}

// Submit godoc
// @Summary Submit quote request
// @Description Stores a pending quote request and notifies the desk
// @Tags Quotes
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param X-CSRF-Token header string true "Form token"
// @Param payload body dto.SubmitQuoteRequest true "Quote request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quotes [post]
func (h *QuoteHandler) Submit(c *gin.Context) {
	if h.intake == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.SubmitQuoteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quote request payload"))
		return
	}

	res, err := h.intake.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
