package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quote-desk-api/internal/models"
	"github.com/noah-isme/quote-desk-api/internal/service"
	"github.com/noah-isme/quote-desk-api/pkg/config"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error == nil {
		return ""
	}
	return envelope.Error.Code
}

func TestJWTAndRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleViewer}}))
	router.GET("/list", func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok || claims.UserID != "u1" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	router.POST("/mutate", RequireRoles(models.RoleAdmin, models.RoleEditor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		method string
		path   string
		header string
		status int
		code   string
	}{
		{"missing header", http.MethodGet, "/list", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad scheme", http.MethodGet, "/list", "Basic good", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", http.MethodGet, "/list", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"ok", http.MethodGet, "/list", "Bearer good", http.StatusNoContent, ""},
		{"viewer cannot mutate", http.MethodPost, "/mutate", "Bearer good", http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(recorder, req)
			if recorder.Code != tc.status {
				t.Fatalf("unexpected status: %d", recorder.Code)
			}
			if tc.code != "" {
				if got := errorCode(t, recorder.Body.String()); got != tc.code {
					t.Fatalf("unexpected error code: %s", got)
				}
			}
		})
	}
}

func TestCurrentUserMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := CurrentUser(c); ok {
		t.Fatalf("expected no user")
	}
	c.Set(ContextUserKey, "not claims")
	if _, ok := CurrentUser(c); ok {
		t.Fatalf("expected wrong type to be rejected")
	}
}

func TestCSRFProtectsUnsafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CSRF(config.CSRFConfig{AuthKey: "0123456789abcdef0123456789abcdef"}))
	router.GET("/token", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	router.POST("/submit", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	tokenRec := httptest.NewRecorder()
	router.ServeHTTP(tokenRec, httptest.NewRequest(http.MethodGet, "/token", nil))
	if tokenRec.Code != http.StatusOK || tokenRec.Body.Len() == 0 {
		t.Fatalf("expected token, got %d", tokenRec.Code)
	}
	cookies := tokenRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected csrf cookie")
	}

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("{}")))
	if missing.Code != http.StatusForbidden {
		t.Fatalf("unexpected status without token: %d", missing.Code)
	}
	if got := errorCode(t, missing.Body.String()); got != appErrors.ErrSecurity.Code {
		t.Fatalf("unexpected error code: %s", got)
	}

	ok := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("{}"))
	req.Header.Set(CSRFHeader, tokenRec.Body.String())
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	router.ServeHTTP(ok, req)
	if ok.Code != http.StatusCreated {
		t.Fatalf("unexpected status with token: %d", ok.Code)
	}
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if ExtractMeta(c) != nil {
		t.Fatalf("expected no meta before middleware")
	}
	SetMeta(c, "cache", "hit")
	if ExtractMeta(c)["cache"] != "hit" {
		t.Fatalf("meta not stored")
	}
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/admin/quotes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/admin/quotes/a", "/admin/quotes/b", "/wp-login.php"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					counts[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["/admin/quotes/:id"] != 2 {
		t.Fatalf("expected 2 requests on route template, got %v", counts)
	}
	if counts[unmatchedPath] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected path labels: %v", counts)
	}
}

func TestRequireRolesWithEditorCapabilities(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := RequireRoles(service.NewRoleCapabilities().EditorRoles()...)

	cases := []struct {
		role   models.UserRole
		status int
	}{
		{models.RoleSuperAdmin, http.StatusNoContent},
		{models.RoleAdmin, http.StatusNoContent},
		{models.RoleEditor, http.StatusNoContent},
		{models.RoleViewer, http.StatusForbidden},
	}
	for _, tc := range cases {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: tc.role})
		})
		router.POST("/actions", guard, func(c *gin.Context) { c.Status(http.StatusNoContent) })

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/actions", nil))
		if recorder.Code != tc.status {
			t.Fatalf("role %s: unexpected status %d", tc.role, recorder.Code)
		}
	}
}

func TestCSRFSharedHandlerKeepsRequestsApart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CSRF(config.CSRFConfig{AuthKey: "0123456789abcdef0123456789abcdef"}))
	router.GET("/token", func(c *gin.Context) {
		c.String(http.StatusOK, c.Query("n")+":"+CSRFToken(c))
	})

	const requests = 20
	var wg sync.WaitGroup
	bodies := make([]string, requests)
	codes := make([]int, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recorder := httptest.NewRecorder()
			n := string(rune('a' + i))
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/token?n="+n, nil))
			codes[i] = recorder.Code
			bodies[i] = recorder.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 0; i < requests; i++ {
		if codes[i] != http.StatusOK {
			t.Fatalf("request %d: unexpected status %d", i, codes[i])
		}
		prefix := string(rune('a'+i)) + ":"
		if !strings.HasPrefix(bodies[i], prefix) || len(bodies[i]) == len(prefix) {
			t.Fatalf("request %d: unexpected body %q", i, bodies[i])
		}
	}
}
