package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps an optional role string onto a Role. Empty means RoleUser.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(raw)) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", &ValidationError{Field: "role", Message: "Role must be either user or admin"}
	}
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns a copy safe to hand to callers outside the core.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// Identity is the request-scoped view of an authenticated user.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// NewUser is what the core hands to storage on create. ID and CreatedAt are
// assigned by the store.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}

// Patch lists the only fields an update may touch. Nil means unchanged.
type Patch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
}

func (p Patch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil
}

// Assignments renders p as SQL "col = <placeholder>" pairs over a fixed set
// of columns, numbering parameters from 1.
func (p Patch) Assignments(ph Placeholder) ([]string, []any) {
	var (
		sets []string
		args []any
	)

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+ph(len(args)))
	}

	if p.Username != nil {
		add("username", *p.Username)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}

	return sets, args
}
