package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var alice = user.Identity{ID: 7, Email: "a@x.com", Role: user.RoleUser}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != alice.ID || claims.Email != alice.Email || claims.Role != alice.Role {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Subject != "7" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}

	ttl := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if ttl != TokenTTL {
		t.Fatalf("ttl = %s, want %s", ttl, TokenTTL)
	}
}

func TestIssueIsDeterministicForSameInstant(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManager("test-secret").WithClock(fixedClock(now))

	a, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue a: %v", err)
	}
	b, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical tokens for identical input and time")
	}

	later := m.WithClock(fixedClock(now.Add(time.Second)))
	c, err := later.Issue(alice)
	if err != nil {
		t.Fatalf("issue c: %v", err)
	}
	if a == c {
		t.Fatalf("expected distinct tokens for distinct timestamps")
	}
}

func TestVerifyExpired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManager("test-secret").WithClock(fixedClock(issuedAt))

	token, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.WithClock(fixedClock(issuedAt.Add(23 * time.Hour))).Verify(token); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	_, err = m.WithClock(fixedClock(issuedAt.Add(TokenTTL + time.Second))).Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape %q", token)
	}

	forgedPayload := base64.RawURLEncoding.EncodeToString(
		[]byte(`{"id":7,"email":"a@x.com","role":"admin","sub":"7","exp":4102444800,"iat":1700000000}`),
	)

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "payload", token: parts[0] + "." + forgedPayload + "." + parts[2]},
		{name: "signature", token: parts[0] + "." + parts[1] + "." + string(sig)},
		{name: "malformed", token: "not.a.jwt"},
		{name: "empty", token: ""},
		{name: "wrong_secret", token: mustIssue(t, NewManager("other-secret"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	m := NewManager("test-secret")

	claims := Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Verify(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none rejected, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := m.Verify(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected HS512 rejected, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	m := NewManager("test-secret")

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 7}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp rejected, got %v", err)
	}
}

func mustIssue(t *testing.T, m *Manager) string {
	t.Helper()
	token, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}
