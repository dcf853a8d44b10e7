package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/userapi/internal/cache"
	"github.com/geocoder89/userapi/internal/domain/user"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is a map-backed UserStore for service tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]user.User

	findByIDErr    error
	findByEmailErr error
	createErr      error
	updates        []user.Patch
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, byID: make(map[int64]user.User)}
}

func (m *memStore) FindByID(_ context.Context, id int64) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByIDErr != nil {
		return user.User{}, m.findByIDErr
	}
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByEmailErr != nil {
		return user.User{}, m.findByEmailErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (m *memStore) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return user.User{}, m.createErr
	}
	u := user.User{
		ID:           m.nextID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         nu.Role,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	m.byID[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *memStore) Update(_ context.Context, id int64, p user.Patch) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updates = append(m.updates, p)

	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	m.byID[id] = u
	return u, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return user.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// fakeHasher keeps tests fast; the real bcrypt hasher has its own tests.
type fakeHasher struct {
	burns int
}

func (f *fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (f *fakeHasher) Verify(plain, hash string) bool {
	return strings.HasPrefix(hash, "hashed:") && strings.TrimPrefix(hash, "hashed:") == plain
}

func (f *fakeHasher) Burn(string) { f.burns++ }

type fakeIssuer struct {
	issueFn func(id user.Identity) (string, error)
}

func (f *fakeIssuer) Issue(id user.Identity) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(id)
	}
	return "token-for-" + id.Email, nil
}

type countingCache struct {
	mu          sync.Mutex
	invalidated int
	stored      map[string]user.PageResult
}

var _ cache.PageCache = (*countingCache)(nil)

func newCountingCache() *countingCache {
	return &countingCache{stored: make(map[string]user.PageResult)}
}

func (c *countingCache) key(q user.FilterQuery) string {
	q = q.Normalize()
	return fmt.Sprintf("%s|%s|%d|%d", q.Search, q.Role, q.Page, q.Limit)
}

func (c *countingCache) Get(_ context.Context, q user.FilterQuery) (user.PageResult, cache.Generation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.stored[c.key(q)]
	return r, cache.Generation(c.invalidated), ok
}

func (c *countingCache) Put(_ context.Context, gen cache.Generation, q user.FilterQuery, res user.PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != cache.Generation(c.invalidated) {
		return
	}
	c.stored[c.key(q)] = res
}

func (c *countingCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.stored = make(map[string]user.PageResult)
}
