package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-desk-api/internal/dto"
	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
)

type lifecycleFixture struct {
	store  *quoteStoreStub
	tokens *ActionTokenService
	audit  *auditRecorder
	cache  *invalidatorStub
	svc    *LifecycleService
	actor  *models.JWTClaims
}

func newLifecycleFixture(cfg LifecycleConfig) *lifecycleFixture {
	f := &lifecycleFixture{
		store:  newQuoteStoreStub(),
		tokens: NewActionTokenService(ActionTokenConfig{Secret: "test", TTL: time.Minute}, nil, nil),
		audit:  &auditRecorder{},
		cache:  &invalidatorStub{},
		actor:  &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin},
	}
	f.svc = NewLifecycleService(f.store, NewRoleCapabilities(), f.tokens, f.audit, f.cache, NewMetricsService(), cfg, nil)
	return f
}

func (f *lifecycleFixture) apply(t *testing.T, action models.QuoteAction, view string, ids ...string) *dto.QuoteActionResult {
	t.Helper()
	token, _, err := f.tokens.Issue(f.actor, action, ids)
	require.NoError(t, err)
	res, err := f.svc.Apply(context.Background(), f.actor, dto.QuoteActionRequest{Action: action, IDs: ids, Token: token, StatusView: view})
	require.NoError(t, err)
	return res
}

func TestLifecycleSubmitApproveTrashRestore(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	intake := NewIntakeService(f.store, nil, nil, nil, nil, nil, nil)
	submitted, err := intake.Submit(context.Background(), dto.SubmitQuoteRequest{Name: "Jane Doe", Email: "jane@example.com", Service: "Plumbing"})
	require.NoError(t, err)
	id := submitted.ID

	res := f.apply(t, models.QuoteActionApprove, "", id)
	assert.True(t, res.Success)
	assert.Equal(t, []string{id}, res.Affected)
	assert.Equal(t, "all", res.RedirectStatus)
	assert.Equal(t, models.QuoteStatusApproved, f.store.quotes[id].Status)

	res = f.apply(t, models.QuoteActionTrash, "approved", id)
	assert.Equal(t, "approved", res.RedirectStatus)
	assert.Equal(t, models.QuoteStatusTrashed, f.store.quotes[id].Status)

	f.apply(t, models.QuoteActionRestore, "trashed", id)
	assert.Equal(t, models.QuoteStatusPending, f.store.quotes[id].Status, "restore never returns to the prior status")

	require.Len(t, f.audit.logs, 3)
	assert.Equal(t, models.AuditActionQuoteRestore, f.audit.logs[2].Action)
	assert.Equal(t, []string{quoteCountsCacheKey, quoteCountsCacheKey, quoteCountsCacheKey}, f.cache.keys)
}

func TestLifecycleApproveIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	f.store.seed("q1", models.QuoteStatusApproved)

	res := f.apply(t, models.QuoteActionApprove, "", "q1")
	assert.True(t, res.Success)
	assert.Equal(t, []string{"q1"}, res.Affected)
	assert.Equal(t, models.QuoteStatusApproved, f.store.quotes["q1"].Status)
}

func TestLifecycleSkipsInapplicableAndMissing(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	f.store.seed("trashed", models.QuoteStatusTrashed)
	f.store.seed("pending", models.QuoteStatusPending)

	res := f.apply(t, models.QuoteActionApprove, "", "trashed", "ghost", "pending")
	assert.True(t, res.Success)
	assert.Equal(t, []string{"pending"}, res.Affected)
	assert.Equal(t, []string{"trashed", "ghost"}, res.Skipped)
	assert.Equal(t, models.QuoteStatusTrashed, f.store.quotes["trashed"].Status)

	res = f.apply(t, models.QuoteActionRestore, "", "pending")
	assert.Equal(t, []string{"pending"}, res.Skipped)
}

func TestLifecyclePurge(t *testing.T) {
	t.Run("permissive", func(t *testing.T) {
		f := newLifecycleFixture(LifecycleConfig{})
		f.store.seed("a", models.QuoteStatusApproved)
		f.store.seed("b", models.QuoteStatusTrashed)

		res := f.apply(t, models.QuoteActionPurge, "approved", "a", "b")
		assert.Equal(t, []string{"a", "b"}, res.Affected)
		assert.Equal(t, "trashed", res.RedirectStatus)
		assert.Empty(t, f.store.quotes)
	})

	t.Run("strict", func(t *testing.T) {
		f := newLifecycleFixture(LifecycleConfig{StrictPurge: true})
		f.store.seed("a", models.QuoteStatusApproved)
		f.store.seed("b", models.QuoteStatusTrashed)

		res := f.apply(t, models.QuoteActionPurge, "", "a", "b")
		assert.Equal(t, []string{"b"}, res.Affected)
		assert.Equal(t, []string{"a"}, res.Skipped)
		assert.Contains(t, f.store.quotes, "a")
	})
}

func TestLifecycleInvalidTokenMutatesNothing(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	f.store.seed("q1", models.QuoteStatusPending)

	token, _, err := f.tokens.Issue(f.actor, models.QuoteActionApprove, []string{"q1"})
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), f.actor, dto.QuoteActionRequest{Action: models.QuoteActionTrash, IDs: []string{"q1"}, Token: token})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSecurity))

	_, err = f.svc.Apply(context.Background(), f.actor, dto.QuoteActionRequest{Action: models.QuoteActionApprove, IDs: []string{"q1"}, Token: "forged"})
	assert.True(t, errors.Is(err, appErrors.ErrSecurity))

	assert.Equal(t, models.QuoteStatusPending, f.store.quotes["q1"].Status)
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.audit.logs)
}

func TestLifecycleForbiddenBeforeToken(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	f.store.seed("q1", models.QuoteStatusPending)
	viewer := &models.JWTClaims{UserID: "v1", Role: models.RoleViewer}

	_, err := f.svc.Apply(context.Background(), viewer, dto.QuoteActionRequest{Action: models.QuoteActionApprove, IDs: []string{"q1"}, Token: "whatever"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Apply(context.Background(), nil, dto.QuoteActionRequest{Action: models.QuoteActionApprove, IDs: []string{"q1"}})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.store.updates)
}

func TestLifecycleValidation(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})

	_, err := f.svc.Apply(context.Background(), f.actor, dto.QuoteActionRequest{Action: "publish", IDs: []string{"q1"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Apply(context.Background(), f.actor, dto.QuoteActionRequest{Action: models.QuoteActionApprove, IDs: []string{"", " "}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLifecycleStoreErrorContinuesBatch(t *testing.T) {
	f := newLifecycleFixture(LifecycleConfig{})
	f.store.seed("a", models.QuoteStatusPending)
	f.store.seed("b", models.QuoteStatusPending)
	f.store.updateErrs["a"] = errors.New("deadlock")

	res := f.apply(t, models.QuoteActionReject, "", "a", "b")
	assert.False(t, res.Success)
	assert.Equal(t, []string{"a"}, res.Failed)
	assert.Equal(t, []string{"b"}, res.Affected)
	assert.Equal(t, models.QuoteStatusRejected, f.store.quotes["b"].Status)
}

func TestNextStatusTable(t *testing.T) {
	statuses := models.QuoteStatuses
	for _, from := range statuses {
		next, purge, ok := nextStatus(models.QuoteActionTrash, from, false)
		if from == models.QuoteStatusTrashed {
			assert.False(t, ok)
			continue
		}
		assert.True(t, ok)
		assert.False(t, purge)
		assert.Equal(t, models.QuoteStatusTrashed, next)
	}
	_, _, ok := nextStatus(models.QuoteActionReject, models.QuoteStatusTrashed, false)
	assert.False(t, ok)
	_, purge, ok := nextStatus(models.QuoteActionPurge, models.QuoteStatusPending, false)
	assert.True(t, ok)
	assert.True(t, purge)
}
