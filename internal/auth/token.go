package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// TokenManager supplies the bearer token attached to every request.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Token is a tenant access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	ObtainedAt  time.Time
}

// Valid reports whether the token is usable. A token without an expiry never expires;
// otherwise it is considered expired TokenExpiryBuffer before the server says so.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpiryBuffer).Before(t.ExpiresAt)
}

// TokenStore guards a single token.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear drops the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// StaticTokenManager serves a caller-supplied token.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager wraps a pre-obtained tenant access token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	store := NewTokenStore()
	store.Set(&Token{AccessToken: token, ObtainedAt: time.Now()})

	return &StaticTokenManager{store: store}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.store.Get().AccessToken, nil
}

// RefreshToken always fails; there are no credentials to refresh with.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return bitable.ErrStaticTokenRefresh
}

// SetToken replaces the static token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt, ObtainedAt: time.Now()})
}
