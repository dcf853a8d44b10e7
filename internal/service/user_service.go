package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/cache"
	"github.com/geocoder89/userapi/internal/domain/user"
)

// UserService backs the admin user-management endpoints.
type UserService struct {
	users  UserStore
	hasher PasswordHasher
	engine *QueryEngine
	pages  cache.PageCache
	log    *slog.Logger
}

func NewUserService(users UserStore, hasher PasswordHasher, engine *QueryEngine, pages cache.PageCache, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, hasher: hasher, engine: engine, pages: pages, log: log}
}

type CreateInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// UpdateInput fields left nil are not touched.
type UpdateInput struct {
	Username *string
	Email    *string
	Password *string
	Role     *string
}

func (s *UserService) Get(ctx context.Context, id int64) (user.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return user.User{}, user.Storage("find_by_id", err)
	}
	return u.Public(), nil
}

func (s *UserService) Create(ctx context.Context, in CreateInput) (user.User, error) {
	role, err := user.ParseRole(in.Role)
	if err != nil {
		return user.User{}, err
	}

	u, err := createUser(ctx, s.users, s.hasher, in.Username, in.Email, in.Password, role)
	if err != nil {
		return user.User{}, err
	}

	invalidate(ctx, s.pages)
	s.log.InfoContext(ctx, "users.created", "user_id", u.ID, "role", u.Role)

	return u.Public(), nil
}

// Update applies in to user id on behalf of actor. Only an admin may change a
// role; the caller decides whether actor may touch id at all.
func (s *UserService) Update(ctx context.Context, actor user.Identity, id int64, in UpdateInput) (user.User, error) {
	if in.Username == nil && in.Email == nil && in.Password == nil && in.Role == nil {
		return user.User{}, &user.ValidationError{Message: "No fields to update"}
	}

	existing, err := s.users.FindByID(ctx, id)
	if err != nil {
		return user.User{}, user.Storage("find_by_id", err)
	}

	var patch user.Patch

	if in.Username != nil {
		patch.Username = in.Username
	}

	if in.Email != nil {
		if *in.Email != existing.Email {
			other, err := s.users.FindByEmail(ctx, *in.Email)
			switch {
			case err == nil && other.ID != id:
				return user.User{}, user.ErrEmailTaken
			case err != nil && !errors.Is(err, user.ErrNotFound):
				return user.User{}, user.Storage("find_by_email", err)
			}
		}
		patch.Email = in.Email
	}

	if in.Password != nil {
		hash, err := hashPassword(s.hasher, *in.Password)
		if err != nil {
			return user.User{}, err
		}
		patch.PasswordHash = &hash
	}

	if in.Role != nil {
		role, err := user.ParseRole(*in.Role)
		if err != nil {
			return user.User{}, err
		}
		if role != existing.Role && !actor.IsAdmin() {
			return user.User{}, auth.ErrForbidden
		}
		patch.Role = &role
	}

	updated, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return user.User{}, user.Storage("update_user", err)
	}

	invalidate(ctx, s.pages)
	s.log.InfoContext(ctx, "users.updated", "user_id", id, "actor_id", actor.ID)

	return updated.Public(), nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return user.Storage("find_by_id", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return user.Storage("delete_user", err)
	}

	invalidate(ctx, s.pages)
	s.log.InfoContext(ctx, "users.deleted", "user_id", id)

	return nil
}

func (s *UserService) List(ctx context.Context, q user.FilterQuery) (user.PageResult, error) {
	return s.engine.Run(ctx, q)
}

type AdminSeed struct {
	Email    string
	Username string
	Password string
}

// EnsureAdmin creates the seed admin unless an account with that email
// already exists. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}

	username := seed.Username
	if username == "" {
		username = "admin"
	}

	_, err := s.Create(ctx, CreateInput{
		Username: username,
		Email:    seed.Email,
		Password: seed.Password,
		Role:     string(user.RoleAdmin),
	})
	if errors.Is(err, user.ErrEmailTaken) {
		s.warnIfNotAdmin(ctx, seed.Email)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// warnIfNotAdmin reports a seed email held by an account that cannot
// administer anything. The account is left as it is.
func (s *UserService) warnIfNotAdmin(ctx context.Context, email string) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.log.WarnContext(ctx, "users.admin_seed_lookup_failed", "email", email, "err", err)
		return
	}
	if existing.Role != user.RoleAdmin {
		s.log.WarnContext(ctx, "users.admin_seed_not_admin",
			"email", email,
			"user_id", existing.ID,
			"role", existing.Role,
		)
	}
}
