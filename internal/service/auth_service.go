package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/userapi/internal/cache"
	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/security"
)

type AuthConfig struct {
	// AllowRegisterRole lets self-registration pick its own role. Off means
	// every registered account is a plain user.
	AllowRegisterRole bool
}

// AuthService implements registration, login and profile lookup.
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	pages  cache.PageCache
	cfg    AuthConfig
	log    *slog.Logger
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, pages cache.PageCache, cfg AuthConfig, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{users: users, hasher: hasher, tokens: tokens, pages: pages, cfg: cfg, log: log}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	role := user.RoleUser

	if s.cfg.AllowRegisterRole {
		r, err := user.ParseRole(in.Role)
		if err != nil {
			return user.User{}, err
		}
		role = r
	}

	u, err := createUser(ctx, s.users, s.hasher, in.Username, in.Email, in.Password, role)
	if err != nil {
		return user.User{}, err
	}

	invalidate(ctx, s.pages)
	s.log.InfoContext(ctx, "auth.registered", "user_id", u.ID, "role", u.Role)

	return u.Public(), nil
}

// Login answers ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	found, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.Burn(password)
			return LoginResult{}, user.ErrInvalidCredentials
		}
		return LoginResult{}, user.Storage("find_by_email", err)
	}

	if !s.hasher.Verify(password, found.PasswordHash) {
		return LoginResult{}, user.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(found.Identity())
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.InfoContext(ctx, "auth.login", "user_id", found.ID)

	return LoginResult{User: found.Public(), Token: token}, nil
}

// Profile reloads the identity's record so the response reflects current data.
func (s *AuthService) Profile(ctx context.Context, id user.Identity) (user.User, error) {
	u, err := s.users.FindByID(ctx, id.ID)
	if err != nil {
		return user.User{}, user.Storage("find_by_id", err)
	}
	return u.Public(), nil
}

// createUser is shared by self-registration and admin create.
func createUser(ctx context.Context, users UserStore, hasher PasswordHasher, username, email, password string, role user.Role) (user.User, error) {
	_, err := users.FindByEmail(ctx, email)
	if err == nil {
		return user.User{}, user.ErrEmailTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, user.Storage("find_by_email", err)
	}

	hash, err := hashPassword(hasher, password)
	if err != nil {
		return user.User{}, err
	}

	u, err := users.Create(ctx, user.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return user.User{}, user.Storage("create_user", err)
	}

	return u, nil
}

func hashPassword(hasher PasswordHasher, plain string) (string, error) {
	hash, err := hasher.Hash(plain)
	if err != nil {
		if security.IsTooLong(err) {
			return "", &user.ValidationError{Field: "password", Message: "Password must be at most 72 bytes"}
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func invalidate(ctx context.Context, pages cache.PageCache) {
	if pages != nil {
		pages.Invalidate(ctx)
	}
}
