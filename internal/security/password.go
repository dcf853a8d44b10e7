package security

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt work factor for every stored password.
const Cost = 10

type Hasher struct {
	cost int

	// dummy is compared against when no account exists so a failed login
	// costs the same whether the email was unknown or the password was wrong.
	dummyOnce sync.Once
	dummy     []byte
}

func NewHasher() *Hasher {
	return &Hasher{cost: Cost}
}

// Hash hashes a plain text password with bcrypt. Each call draws a fresh salt.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify reports whether plain matches hash. A malformed hash never matches.
func (h *Hasher) Verify(plain, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))

	return err == nil
}

// Burn spends one comparison's worth of work without a real hash.
func (h *Hasher) Burn(plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("userapi-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}

// IsTooLong reports the bcrypt input limit so callers can reject early.
func IsTooLong(err error) bool {
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
