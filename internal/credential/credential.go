package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissing = errors.New("credential: bearer token missing")
	ErrExpired = errors.New("credential: bearer token expired")
)

// Claims is the subset of the upstream access-token claims the console reads.
// The console never verifies signatures; the upstream API does.
type Claims struct {
	jwt.RegisteredClaims

	Role      string `json:"role,omitempty"`
	TokenType string `json:"type,omitempty"`
}

// Bearer holds the operator's upstream access token and refuses to hand out
// one that is already expired, so requests fail fast with an authorization
// error instead of a round trip.
type Bearer struct {
	mu     sync.RWMutex
	raw    string
	claims Claims
	jwt    bool

	// leeway absorbs clock skew with the upstream API.
	leeway time.Duration
	now    func() time.Time
}

func NewBearer(token string) (*Bearer, error) {
	b := &Bearer{leeway: 30 * time.Second, now: time.Now}
	if err := b.Replace(token); err != nil {
		return nil, err
	}
	return b, nil
}

// Replace swaps the held token. Opaque (non-JWT) tokens are accepted and
// never considered expired.
func (b *Bearer) Replace(token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ErrMissing
	}

	var claims Claims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	isJWT := err == nil

	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw = token
	b.claims = claims
	b.jwt = isJWT
	return nil
}

// Token implements apiclient.TokenSource.
func (b *Bearer) Token(_ context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.raw == "" {
		return "", ErrMissing
	}
	if exp, ok := b.expiresAtLocked(); ok && !b.now().Before(exp.Add(b.leeway)) {
		return "", ErrExpired
	}
	return b.raw, nil
}

// ExpiresAt returns the token expiry when the token is a JWT carrying one.
func (b *Bearer) ExpiresAt() (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.expiresAtLocked()
}

// Subject returns the "sub" claim, typically the operator username.
func (b *Bearer) Subject() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.claims.Subject
}

func (b *Bearer) Role() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.claims.Role
}

func (b *Bearer) expiresAtLocked() (time.Time, bool) {
	if !b.jwt || b.claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return b.claims.ExpiresAt.Time, true
}
