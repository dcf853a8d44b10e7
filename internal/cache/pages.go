package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

// Generation identifies the cache state a read started from. Invalidate moves
// the cache to a new generation.
type Generation int64

// noGeneration is handed out when the generation could not be read. Puts
// carrying it are dropped.
const noGeneration Generation = -1

// PageCache holds user-list results keyed by their normalized filter. Any
// mutation of the user table must call Invalidate.
//
// Get returns the current generation even on a miss. The caller passes it
// back to Put, and a page built before an Invalidate is never stored.
type PageCache interface {
	Get(ctx context.Context, q user.FilterQuery) (user.PageResult, Generation, bool)
	Put(ctx context.Context, gen Generation, q user.FilterQuery, res user.PageResult)
	Invalidate(ctx context.Context)
}

// PageKey is stable for equal normalized filters.
func PageKey(q user.FilterQuery) string {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", fmt.Sprint(q.Page))
	v.Set("limit", fmt.Sprint(q.Limit))
	v.Set("search", q.Search)
	v.Set("role", q.Role)
	return v.Encode()
}

// strip keeps hashes out of any cached copy.
func strip(res user.PageResult) user.PageResult {
	users := make([]user.User, len(res.Users))
	for i, u := range res.Users {
		users[i] = u.Public()
	}
	res.Users = users
	return res
}

// MemoryPages is a PageCache local to one process.
type MemoryPages struct {
	mu  sync.Mutex
	gen Generation
	c   *TTL[user.PageResult]
}

func NewMemoryPages(ttl time.Duration) *MemoryPages {
	return &MemoryPages{c: NewTTL[user.PageResult](ttl)}
}

func (m *MemoryPages) Get(_ context.Context, q user.FilterQuery) (user.PageResult, Generation, bool) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	res, ok := m.c.Get(PageKey(q))
	return res, gen, ok
}

// Put drops the page when an Invalidate happened after gen was handed out.
func (m *MemoryPages) Put(_ context.Context, gen Generation, q user.FilterQuery, res user.PageResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	m.c.Set(PageKey(q), strip(res))
}

func (m *MemoryPages) Invalidate(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.c.Clear()
}

// Sweep drops expired pages and reports how many went.
func (m *MemoryPages) Sweep() int {
	return m.c.Sweep()
}

// RedisPages stores pages under a generation number; Invalidate bumps the
// generation so every older page becomes unreachable and expires on its own.
type RedisPages struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedisPages(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisPages {
	if log == nil {
		log = slog.Default()
	}
	return &RedisPages{rdb: rdb, ttl: ttl, prefix: "userapi:users:list", log: log}
}

func (r *RedisPages) genKey() string {
	return r.prefix + ":gen"
}

func (r *RedisPages) generation(ctx context.Context) (Generation, error) {
	n, err := r.rdb.Get(ctx, r.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return Generation(n), err
}

func (r *RedisPages) pageKey(gen Generation, q user.FilterQuery) string {
	return fmt.Sprintf("%s:%d:%s", r.prefix, gen, PageKey(q))
}

func (r *RedisPages) Get(ctx context.Context, q user.FilterQuery) (user.PageResult, Generation, bool) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "cache.generation_failed", "err", err)
		return user.PageResult{}, noGeneration, false
	}

	raw, err := r.rdb.Get(ctx, r.pageKey(gen, q)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WarnContext(ctx, "cache.get_failed", "err", err)
		}
		return user.PageResult{}, gen, false
	}

	var res user.PageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return user.PageResult{}, gen, false
	}
	return res, gen, true
}

// Put writes under gen, not the live generation. A page computed before an
// Invalidate lands under the old generation, where no reader looks.
func (r *RedisPages) Put(ctx context.Context, gen Generation, q user.FilterQuery, res user.PageResult) {
	if gen < 0 {
		return
	}

	raw, err := json.Marshal(strip(res))
	if err != nil {
		return
	}

	if err := r.rdb.Set(ctx, r.pageKey(gen, q), raw, r.ttl).Err(); err != nil {
		r.log.WarnContext(ctx, "cache.set_failed", "err", err)
	}
}

func (r *RedisPages) Invalidate(ctx context.Context) {
	if err := r.rdb.Incr(ctx, r.genKey()).Err(); err != nil {
		r.log.WarnContext(ctx, "cache.invalidate_failed", "err", err)
	}
}
