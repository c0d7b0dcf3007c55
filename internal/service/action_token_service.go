package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/internal/models"
	appErrors "github.com/noah-isme/quote-desk-api/pkg/errors"
)

const nonceKeyPrefix = "quotes:nonce:"

// NonceStore claims a token id once. A second claim of the same key fails.
type NonceStore interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ActionTokenConfig configures action token signing.
type ActionTokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// ActionTokenService issues and verifies short-lived tokens that bind a
// moderation action to an actor and an exact set of quote ids.
type ActionTokenService struct {
	config ActionTokenConfig
	nonces NonceStore
	logger *zap.Logger
	now    func() time.Time
}

// NewActionTokenService constructs the service. nonces may be nil, in which
// case tokens can be reused until they expire.
func NewActionTokenService(config ActionTokenConfig, nonces NonceStore, logger *zap.Logger) *ActionTokenService {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionTokenService{config: config, nonces: nonces, logger: logger, now: time.Now}
}

// Issue signs a token for actor to apply action to ids.
func (s *ActionTokenService) Issue(actor *models.JWTClaims, action models.QuoteAction, ids []string) (string, time.Time, error) {
	if actor == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "missing actor")
	}
	if !action.Valid() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "unknown action")
	}
	normalized := normalizeIDs(ids)
	if len(normalized) == 0 {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "ids are required")
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.TTL)
	claims := &models.ActionTokenClaims{
		Action: action,
		Scope:  scopeDigest(normalized),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   actor.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign action token")
	}
	return signed, expiresAt, nil
}

// Verify checks that token was issued to actor for exactly this action and id
// set. Every failure is reported as ErrSecurity.
func (s *ActionTokenService) Verify(ctx context.Context, token string, actor *models.JWTClaims, action models.QuoteAction, ids []string) error {
	if strings.TrimSpace(token) == "" {
		return appErrors.Clone(appErrors.ErrSecurity, "missing action token")
	}
	if actor == nil {
		return appErrors.Clone(appErrors.ErrSecurity, "missing actor")
	}

	claims := &models.ActionTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return appErrors.Wrap(err, appErrors.ErrSecurity.Code, appErrors.ErrSecurity.Status, "invalid action token")
	}

	switch {
	case claims.Action != action:
		return appErrors.Clone(appErrors.ErrSecurity, "action token does not match action")
	case claims.Subject != actor.UserID:
		return appErrors.Clone(appErrors.ErrSecurity, "action token issued to another user")
	case claims.Scope != scopeDigest(normalizeIDs(ids)):
		return appErrors.Clone(appErrors.ErrSecurity, "action token does not match selection")
	}

	if s.nonces != nil && claims.ID != "" {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl <= 0 {
			ttl = time.Second
		}
		ok, err := s.nonces.ClaimOnce(ctx, nonceKeyPrefix+claims.ID, ttl)
		if err != nil {
			s.logger.Error("failed to claim action token nonce", zap.String("jti", claims.ID), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrSecurity.Code, appErrors.ErrSecurity.Status, "could not verify action token")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrSecurity, "action token already used")
		}
	}
	return nil
}

// normalizeIDs de-duplicates and sorts so the scope ignores selection order.
func normalizeIDs(ids []string) []string {
	out := uniqueIDs(ids)
	sort.Strings(out)
	return out
}

func scopeDigest(sortedIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(sortedIDs, "\n")))
	return hex.EncodeToString(sum[:])
}
