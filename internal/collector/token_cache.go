package collector

import (
	"context"
	"sync"
	"time"
)

const tokenTTL = 15 * time.Minute

type loginFunc func(ctx context.Context, baseURL, username, password string) (string, error)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenCache keeps login tokens per source/user pair so back-to-back
// collection cycles reuse credentials instead of hammering the login
// endpoint. Failed logins are never cached.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
	login   loginFunc
	now     func() time.Time
}

type TokenCacheOption func(*TokenCache)

// WithClock overrides the cache clock, for tests.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(tc *TokenCache) { tc.now = now }
}

func NewTokenCache(login loginFunc, opts ...TokenCacheOption) *TokenCache {
	tc := &TokenCache{
		entries: make(map[string]cachedToken),
		login:   login,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Token returns a cached token for the pair or performs a fresh login.
func (tc *TokenCache) Token(ctx context.Context, baseURL, username, password string) (string, error) {
	key := baseURL + "::" + username

	tc.mu.Lock()
	entry, ok := tc.entries[key]
	if ok && tc.now().Before(entry.expiresAt) {
		tc.mu.Unlock()
		return entry.token, nil
	}
	tc.mu.Unlock()

	token, err := tc.login(ctx, baseURL, username, password)
	if err != nil {
		return "", err
	}

	tc.mu.Lock()
	tc.entries[key] = cachedToken{token: token, expiresAt: tc.now().Add(tokenTTL)}
	tc.mu.Unlock()
	return token, nil
}

// Invalidate drops the cached token for one pair, forcing a relogin.
func (tc *TokenCache) Invalidate(baseURL, username string) {
	tc.mu.Lock()
	delete(tc.entries, baseURL+"::"+username)
	tc.mu.Unlock()
}

// Clear empties the cache.
func (tc *TokenCache) Clear() {
	tc.mu.Lock()
	tc.entries = make(map[string]cachedToken)
	tc.mu.Unlock()
}
