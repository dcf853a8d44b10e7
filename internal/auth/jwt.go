package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is fixed: every token expires 24h after it was issued.
const TokenTTL = 24 * time.Hour

type Claims struct {
	UserID int64     `json:"id"`
	Email  string    `json:"email"`
	Role   user.Role `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	now    func() time.Time
}

func NewManager(secret string) *Manager {
	return &Manager{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of m that reads time from now. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{secret: m.secret, now: now}
}

// Issue signs the identity into an HS256 token. The same identity at the same
// second yields the same token.
func (m *Manager) Issue(id user.Identity) (string, error) {
	now := m.now().Truncate(time.Second)

	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature and expiry and returns the embedded claims. Every
// failure is reported as ErrInvalidToken.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		// HS256 only; the parser rejects every other alg, including "none".
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}
