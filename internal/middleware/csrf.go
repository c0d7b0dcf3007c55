package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"github.com/noah-isme/quote-desk-api/pkg/config"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
	"github.com/noah-isme/quote-desk-api/pkg/response"
)

// CSRFHeader is where clients echo the form token.
const CSRFHeader = "X-CSRF-Token"

// csrfPass carries the gin context through gorilla/csrf and records whether
// the request got past the check.
type csrfPass struct {
	c      *gin.Context
	passed bool
}

type csrfPassKey struct{}

// CSRF adapts gorilla/csrf to gin for the public quote form. Safe methods pass
// and receive a token; unsafe methods must echo it in CSRFHeader.
func CSRF(cfg config.CSRFConfig) gin.HandlerFunc {
	protected := csrf.Protect(
		[]byte(cfg.AuthKey),
		csrf.Secure(cfg.Secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.TrustedOrigins(cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})),
	)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		pass, ok := r.Context().Value(csrfPassKey{}).(*csrfPass)
		if !ok {
			return
		}
		pass.passed = true
		pass.c.Request = r
		pass.c.Next()
	}))

	return func(c *gin.Context) {
		pass := &csrfPass{c: c}
		req := c.Request.WithContext(context.WithValue(c.Request.Context(), csrfPassKey{}, pass))
		if !cfg.Secure {
			req = csrf.PlaintextHTTPRequest(req)
		}

		protected.ServeHTTP(c.Writer, req)

		if !pass.passed {
			response.Error(c, appErrors.Clone(appErrors.ErrSecurity, "invalid or missing CSRF token"))
			c.Abort()
		}
	}
}

// CSRFToken returns the masked token for the current request. Empty when the
// CSRF middleware did not run.
func CSRFToken(c *gin.Context) string {
	return csrf.Token(c.Request)
}
