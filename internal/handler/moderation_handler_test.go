package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/middleware"
	"github.com/noah-isme/quote-desk-api/internal/models"
	"github.com/noah-isme/quote-desk-api/internal/service"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
)

type fakeModeration struct {
	lastQuery  dto.QuoteListQuery
	list       *dto.QuoteListResult
	counts     *models.QuoteCounts
	quote      *models.Quote
	err        error
	renamedBy  *models.JWTClaims
	renameBody dto.RenameQuoteRequest
}

func (f *fakeModeration) List(_ context.Context, query dto.QuoteListQuery) (*dto.QuoteListResult, error) {
	f.lastQuery = query
	return f.list, f.err
}

func (f *fakeModeration) Counts(context.Context) (*models.QuoteCounts, error) {
	return f.counts, f.err
}

func (f *fakeModeration) Get(_ context.Context, id string) (*models.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeModeration) Rename(_ context.Context, actor *models.JWTClaims, id string, req dto.RenameQuoteRequest) (*models.Quote, error) {
	f.renamedBy = actor
	f.renameBody = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Quote{ID: id, Title: req.Title}, nil
}

type fakeLifecycle struct {
	actor *models.JWTClaims
	req   dto.QuoteActionRequest
	res   *dto.QuoteActionResult
	err   error
}

func (f *fakeLifecycle) Apply(_ context.Context, actor *models.JWTClaims, req dto.QuoteActionRequest) (*dto.QuoteActionResult, error) {
	f.actor = actor
	f.req = req
	return f.res, f.err
}

type fakeIssuer struct {
	action models.QuoteAction
	ids    []string
}

func (f *fakeIssuer) Issue(_ *models.JWTClaims, action models.QuoteAction, ids []string) (string, time.Time, error) {
	f.action = action
	f.ids = ids
	return "signed-token", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type fakeExporter struct {
	format string
	query  dto.QuoteListQuery
	err    error
}

func (f *fakeExporter) Export(_ context.Context, query dto.QuoteListQuery, format string) (*service.ExportFile, error) {
	f.format = format
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "quotes.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("ID,Name\n"), Rows: 0}, nil
}

var editor = &models.JWTClaims{UserID: "editor-1", Role: models.RoleEditor}

func newAdminContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestModerationHandlerListBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &fakeModeration{list: &dto.QuoteListResult{
		Items:      []models.Quote{{ID: "q-1", Title: "Jane"}},
		TotalCount: 41,
		TotalPages: 3,
		Page:       2,
		PerPage:    20,
	}}
	handler := NewModerationHandler(queue, nil, nil, nil)

	c, rec := newAdminContext(http.MethodGet, "/admin/quotes?status=trashed&search=roof&sortBy=title&sortOrder=asc&page=2&perPage=20", "", editor)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.QuoteListQuery{Status: "trashed", Search: "roof", SortBy: "title", SortOrder: "asc", Page: 2, PerPage: 20}, queue.lastQuery)
	assert.Contains(t, rec.Body.String(), `"total_pages":3`)
	assert.Contains(t, rec.Body.String(), `"totalCount":41`)
}

func TestModerationHandlerListRejectsMalformedPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewModerationHandler(&fakeModeration{}, nil, nil, nil)

	c, rec := newAdminContext(http.MethodGet, "/admin/quotes?page=abc", "", editor)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModerationHandlerCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewModerationHandler(&fakeModeration{counts: &models.QuoteCounts{Pending: 2, Trashed: 1, All: 2}}, nil, nil, nil)

	c, rec := newAdminContext(http.MethodGet, "/admin/quotes/counts", "", editor)
	handler.Counts(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.EqualValues(t, 2, envelope.Data["all"])
	assert.EqualValues(t, 1, envelope.Data["trashed"])
}

func TestModerationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewModerationHandler(&fakeModeration{err: appErrors.Clone(appErrors.ErrNotFound, "quote not found")}, nil, nil, nil)

	c, rec := newAdminContext(http.MethodGet, "/admin/quotes/missing", "", editor)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModerationHandlerRename(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &fakeModeration{}
	handler := NewModerationHandler(queue, nil, nil, nil)

	c, rec := newAdminContext(http.MethodPatch, "/admin/quotes/q-1", `{"title":"Jane Doe"}`, editor)
	c.Params = gin.Params{{Key: "id", Value: "q-1"}}
	handler.Rename(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jane Doe", queue.renameBody.Title)
	assert.Equal(t, editor, queue.renamedBy)

	c, rec = newAdminContext(http.MethodPatch, "/admin/quotes/q-1", `{"title":"x"}`, nil)
	handler.Rename(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestModerationHandlerActionToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := &fakeIssuer{}
	handler := NewModerationHandler(nil, nil, issuer, nil)

	c, rec := newAdminContext(http.MethodPost, "/admin/quotes/action-token", `{"action":" Approve ","ids":["q-1","q-2"]}`, editor)
	handler.ActionToken(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.QuoteActionApprove, issuer.action)
	assert.Equal(t, []string{"q-1", "q-2"}, issuer.ids)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "signed-token", envelope.Data["token"])
}

func TestModerationHandlerActions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &fakeLifecycle{res: &dto.QuoteActionResult{Success: true, RedirectStatus: "pending", Affected: []string{"q-1"}}}
	handler := NewModerationHandler(nil, lifecycle, nil, nil)

	c, rec := newAdminContext(http.MethodPost, "/admin/quotes/actions", `{"action":"approve","ids":["q-1"],"token":"t","status":"pending"}`, editor)
	handler.Actions(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, editor, lifecycle.actor)
	assert.Equal(t, "t", lifecycle.req.Token)
	assert.Equal(t, "pending", lifecycle.req.StatusView)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "pending", envelope.Data["redirectStatus"])
}

func TestModerationHandlerActionsSecurityError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewModerationHandler(nil, &fakeLifecycle{err: appErrors.Clone(appErrors.ErrSecurity, "invalid action token")}, nil, nil)

	c, rec := newAdminContext(http.MethodPost, "/admin/quotes/actions", `{"action":"purge","ids":["q-1"]}`, editor)
	handler.Actions(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrSecurity.Code, envelope.Error.Code)
}

func TestModerationHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &fakeExporter{}
	handler := NewModerationHandler(nil, nil, nil, exporter)

	c, rec := newAdminContext(http.MethodGet, "/admin/quotes/export?format=csv&status=approved", "", editor)
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "approved", exporter.query.Status)
	assert.Equal(t, `attachment; filename="quotes.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID,Name\n", rec.Body.String())
}
