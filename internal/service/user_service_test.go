package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/domain/user"
)

func ptr[T any](v T) *T { return &v }

func newUserService(store *memStore) (*UserService, *countingCache) {
	pages := newCountingCache()
	return NewUserService(store, &fakeHasher{}, nil, pages, discardLogger()), pages
}

func seedUser(t *testing.T, store *memStore, username, email string, role user.Role) user.User {
	t.Helper()
	u, err := store.Create(context.Background(), user.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: "hashed:Secret1",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func TestUserService_Create(t *testing.T) {
	store := newMemStore()
	svc, pages := newUserService(store)

	u, err := svc.Create(context.Background(), CreateInput{Username: "root", Email: "r@x.com", Password: "Secret1", Role: "admin"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if u.Role != user.RoleAdmin || u.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", u)
	}
	if pages.invalidated != 1 {
		t.Fatalf("invalidated = %d, want 1", pages.invalidated)
	}

	if _, err := svc.Create(context.Background(), CreateInput{Username: "dup", Email: "r@x.com", Password: "Secret1"}); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_Get(t *testing.T) {
	store := newMemStore()
	svc, _ := newUserService(store)
	seeded := seedUser(t, store, "amy", "amy@x.com", user.RoleUser)

	got, err := svc.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Email != "amy@x.com" || got.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	store.findByIDErr = errors.New("disk on fire")
	var se *user.StorageError
	if _, err := svc.Get(context.Background(), seeded.ID); !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestUserService_Update(t *testing.T) {
	admin := user.Identity{ID: 100, Email: "admin@x.com", Role: user.RoleAdmin}

	tests := []struct {
		name    string
		actor   func(target user.User) user.Identity
		in      UpdateInput
		wantErr error
		check   func(t *testing.T, got user.User, stored user.User)
	}{
		{
			name:    "no fields",
			actor:   func(user.User) user.Identity { return admin },
			in:      UpdateInput{},
			wantErr: &user.ValidationError{},
		},
		{
			name:  "owner renames self",
			actor: func(u user.User) user.Identity { return u.Identity() },
			in:    UpdateInput{Username: ptr("renamed")},
			check: func(t *testing.T, got, stored user.User) {
				if got.Username != "renamed" || stored.Username != "renamed" {
					t.Fatalf("username not updated: %+v", got)
				}
			},
		},
		{
			name:    "email taken by another user",
			actor:   func(user.User) user.Identity { return admin },
			in:      UpdateInput{Email: ptr("other@x.com")},
			wantErr: user.ErrEmailTaken,
		},
		{
			name:  "same email is not a conflict",
			actor: func(u user.User) user.Identity { return u.Identity() },
			in:    UpdateInput{Email: ptr("target@x.com")},
			check: func(t *testing.T, got, _ user.User) {
				if got.Email != "target@x.com" {
					t.Fatalf("unexpected email %q", got.Email)
				}
			},
		},
		{
			name:  "password is re-hashed",
			actor: func(u user.User) user.Identity { return u.Identity() },
			in:    UpdateInput{Password: ptr("NewPass1")},
			check: func(t *testing.T, got, stored user.User) {
				if got.PasswordHash != "" {
					t.Fatalf("response leaked hash")
				}
				if stored.PasswordHash != "hashed:NewPass1" {
					t.Fatalf("stored hash = %q", stored.PasswordHash)
				}
			},
		},
		{
			name:    "owner cannot promote self",
			actor:   func(u user.User) user.Identity { return u.Identity() },
			in:      UpdateInput{Role: ptr("admin")},
			wantErr: auth.ErrForbidden,
		},
		{
			name:  "owner may resend unchanged role",
			actor: func(u user.User) user.Identity { return u.Identity() },
			in:    UpdateInput{Role: ptr("user")},
		},
		{
			name:  "admin promotes",
			actor: func(user.User) user.Identity { return admin },
			in:    UpdateInput{Role: ptr("admin")},
			check: func(t *testing.T, got, _ user.User) {
				if got.Role != user.RoleAdmin {
					t.Fatalf("role = %q", got.Role)
				}
			},
		},
		{
			name:    "invalid role",
			actor:   func(user.User) user.Identity { return admin },
			in:      UpdateInput{Role: ptr("superuser")},
			wantErr: &user.ValidationError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc, pages := newUserService(store)
			target := seedUser(t, store, "target", "target@x.com", user.RoleUser)
			seedUser(t, store, "other", "other@x.com", user.RoleUser)

			got, err := svc.Update(context.Background(), tt.actor(target), target.ID, tt.in)

			if tt.wantErr != nil {
				var ve *user.ValidationError
				if _, isValidation := tt.wantErr.(*user.ValidationError); isValidation {
					if !errors.As(err, &ve) {
						t.Fatalf("expected ValidationError, got %v", err)
					}
				} else if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(store.updates) != 0 {
					t.Fatalf("store must not be written on error")
				}
				return
			}

			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if pages.invalidated != 1 {
				t.Fatalf("invalidated = %d, want 1", pages.invalidated)
			}
			if tt.check != nil {
				tt.check(t, got, store.byID[target.ID])
			}
		})
	}
}

func TestUserService_Update_NotFound(t *testing.T) {
	svc, _ := newUserService(newMemStore())

	_, err := svc.Update(context.Background(), user.Identity{ID: 1, Role: user.RoleAdmin}, 7, UpdateInput{Username: ptr("x")})
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_Delete(t *testing.T) {
	store := newMemStore()
	svc, pages := newUserService(store)
	u := seedUser(t, store, "gone", "gone@x.com", user.RoleUser)

	if err := svc.Delete(context.Background(), u.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok := store.byID[u.ID]; ok {
		t.Fatalf("user still stored")
	}
	if pages.invalidated != 1 {
		t.Fatalf("invalidated = %d, want 1", pages.invalidated)
	}

	if err := svc.Delete(context.Background(), u.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	store := newMemStore()
	svc, _ := newUserService(store)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, AdminSeed{Email: "boss@x.com", Password: "Secret1"})
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v", created, err)
	}

	found, err := store.FindByEmail(ctx, "boss@x.com")
	if err != nil {
		t.Fatalf("seed admin missing: %v", err)
	}
	if found.Role != user.RoleAdmin || found.Username != "admin" {
		t.Fatalf("unexpected seed %+v", found)
	}

	created, err = svc.EnsureAdmin(ctx, AdminSeed{Email: "boss@x.com", Password: "Secret1"})
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v", created, err)
	}

	created, err = svc.EnsureAdmin(ctx, AdminSeed{})
	if err != nil || created {
		t.Fatalf("empty seed = %v, %v", created, err)
	}
}

func TestUserService_EnsureAdmin_WarnsWhenEmailHeldByUser(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "bob", "boss@x.com", user.RoleUser)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewUserService(store, &fakeHasher{}, nil, newCountingCache(), log)

	created, err := svc.EnsureAdmin(context.Background(), AdminSeed{Email: "boss@x.com", Password: "Secret1"})
	if err != nil || created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, "users.admin_seed_not_admin") {
		t.Fatalf("expected a warning about the non-admin seed account, got %s", out)
	}

	found, _ := store.FindByEmail(context.Background(), "boss@x.com")
	if found.Role != user.RoleUser {
		t.Fatalf("existing account must not be promoted, got role %s", found.Role)
	}
}

func TestUserService_EnsureAdmin_SilentWhenAdminExists(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "boss", "boss@x.com", user.RoleAdmin)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := NewUserService(store, &fakeHasher{}, nil, newCountingCache(), log)

	if _, err := svc.EnsureAdmin(context.Background(), AdminSeed{Email: "boss@x.com", Password: "Secret1"}); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no warning, got %s", buf.String())
	}
}
