package fedex

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL prefers the JWT exp claim, then expires_in, then one hour, and
// renews a minute early.
func tokenTTL(token string, expiresIn int64, now time.Time) time.Duration {
	ttl := defaultTokenTTL
	if exp, ok := jwtExpiry(token); ok {
		ttl = exp.Sub(now)
	} else if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	ttl -= tokenRenewBefore
	if ttl <= 0 {
		// Still usable for this call, never cached.
		return 0
	}
	return ttl
}

func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// memoryTokens keeps the token in process when no shared cache is wired.
type memoryTokens struct {
	mu        sync.Mutex
	value     []byte
	expiresAt time.Time
	now       func() time.Time
}

func newMemoryTokens(now func() time.Time) *memoryTokens {
	return &memoryTokens{now: now}
}

func (m *memoryTokens) Get(_ context.Context, _ string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == nil || !m.now().Before(m.expiresAt) {
		return nil, false, nil
	}
	return m.value, true, nil
}

func (m *memoryTokens) Set(_ context.Context, _ string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		m.value = nil
		return nil
	}
	m.value = append([]byte(nil), value...)
	m.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *memoryTokens) Delete(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	return nil
}
