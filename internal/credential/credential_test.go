package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operateur1",
			IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:      "OPERATEUR",
		TokenType: "access",
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestBearer_ReadsClaimsWithoutVerifying(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	b, err := NewBearer("Bearer " + signed(t, now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("NewBearer: %v", err)
	}
	b.now = func() time.Time { return now }

	exp, ok := b.ExpiresAt()
	if !ok {
		t.Fatalf("expected an expiry")
	}
	if exp.Unix() != now.Add(time.Hour).Unix() {
		t.Fatalf("expiry = %v", exp)
	}
	if b.Subject() != "operateur1" || b.Role() != "OPERATEUR" {
		t.Fatalf("claims = %q/%q", b.Subject(), b.Role())
	}

	tok, err := b.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if strings.Contains(tok, "Bearer") {
		t.Fatalf("token kept its scheme prefix: %q", tok)
	}
}

func TestBearer_RefusesExpiredToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	b, err := NewBearer(signed(t, now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("NewBearer: %v", err)
	}
	b.now = func() time.Time { return now }

	if _, err := b.Token(context.Background()); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// Within leeway.
	b.now = func() time.Time { return now.Add(-45 * time.Second) }
	if _, err := b.Token(context.Background()); err != nil {
		t.Fatalf("expected token within leeway, got %v", err)
	}
}

func TestBearer_OpaqueTokenNeverExpires(t *testing.T) {
	b, err := NewBearer("opaque-api-key")
	if err != nil {
		t.Fatalf("NewBearer: %v", err)
	}
	if _, ok := b.ExpiresAt(); ok {
		t.Fatalf("opaque token should carry no expiry")
	}

	tok, err := b.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "opaque-api-key" {
		t.Fatalf("token = %q", tok)
	}
}

func TestBearer_MissingToken(t *testing.T) {
	if _, err := NewBearer("  "); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}
