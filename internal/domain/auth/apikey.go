package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ScopeAdmin grants access to operator endpoints.
const ScopeAdmin = "admin"

var (
	ErrUnauthenticated = apperr.New(apperr.Unauthenticated, "authentication required")
	ErrForbidden       = apperr.New(apperr.Forbidden, "insufficient permissions")
	// ErrKeyNotFound is returned by Repository when no key matches.
	ErrKeyNotFound = apperr.New(apperr.Unauthenticated, "invalid api key")
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      uuid.UUID
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Principal is the authenticated caller of a request. Customers carry a
// UserID; API keys carry scopes.
type Principal struct {
	UserID uuid.UUID
	KeyID  uuid.UUID
	Scopes []string
}

// HasScope reports whether p was granted scope.
func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID returns the authenticated customer ID or ErrUnauthenticated.
func UserID(ctx context.Context) (uuid.UUID, error) {
	p, ok := FromContext(ctx)
	if !ok || p.UserID == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return p.UserID, nil
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, the form stored
// in api_keys.key_hash.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// MatchHash compares two hex hashes in constant time.
func MatchHash(computed, stored string) bool {
	a, err := hex.DecodeString(computed)
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
