package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

// APIKeyHeader carries operator API keys.
const APIKeyHeader = "api_key"

var errInvalidToken = apperr.New(apperr.Unauthenticated, "invalid or expired token")

// ActiveUsers resolves the customer behind a token.
type ActiveUsers interface {
	Active(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SecurityHandler authenticates customers by bearer JWT and operators by
// HMAC-hashed API key.
type SecurityHandler struct {
	users   ActiveUsers
	apikeys auth.Repository
	secret  []byte
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler. secret signs customer tokens
// and pepper keys the API key HMAC.
func NewSecurityHandler(users ActiveUsers, apikeys auth.Repository, secret, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		users:   users,
		apikeys: apikeys,
		secret:  secret,
		pepper:  pepper,
	}
}

// Customer requires a valid bearer token for an active user.
func (s *SecurityHandler) Customer(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := s.authenticateCustomer(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(ctx))
	})
}

// Admin requires an API key granted the admin scope.
func (s *SecurityHandler) Admin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := s.authenticateKey(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(ctx))
	})
}

func (s *SecurityHandler) authenticateCustomer(ctx context.Context, header string) (context.Context, error) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return ctx, auth.ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		zctx.From(ctx).Debug("Token rejected", zap.Error(err))
		return ctx, errInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, errInvalidToken
	}

	if _, err := s.users.Active(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ctx, errInvalidToken
		}
		return ctx, err
	}

	ctx = auth.WithPrincipal(ctx, auth.Principal{UserID: id})
	return zctx.With(ctx, zap.Stringer("user_id", id)), nil
}

func (s *SecurityHandler) authenticateKey(ctx context.Context, key string) (context.Context, error) {
	if key == "" {
		return ctx, auth.ErrUnauthenticated
	}
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return ctx, auth.ErrKeyNotFound
		}
		return ctx, apperr.Store(err, "find api key")
	}
	// The stored hash could differ if the repository returned the wrong row.
	if !auth.MatchHash(hash, info.KeyHash) {
		return ctx, auth.ErrKeyNotFound
	}

	p := auth.Principal{KeyID: info.ID, Scopes: info.Scopes}
	if !p.HasScope(auth.ScopeAdmin) {
		return ctx, auth.ErrForbidden
	}

	ctx = auth.WithPrincipal(ctx, p)
	return zctx.With(ctx, zap.Stringer("api_key_id", info.ID), zap.String("api_key_name", info.Name)), nil
}

// IssueToken signs a customer token for userID valid for ttl.
func IssueToken(secret []byte, userID uuid.UUID, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
