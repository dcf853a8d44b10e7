// Package app wires configuration into a running set of stores, services and
// the HTTP router. cmd/api, cmd/userctl and the integration tests share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/cache"
	"github.com/geocoder89/userapi/internal/config"
	"github.com/geocoder89/userapi/internal/db"
	httpx "github.com/geocoder89/userapi/internal/http"
	"github.com/geocoder89/userapi/internal/http/handlers"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/geocoder89/userapi/internal/redisclient"
	"github.com/geocoder89/userapi/internal/repo/postgres"
	"github.com/geocoder89/userapi/internal/repo/sqlite"
	"github.com/geocoder89/userapi/internal/security"
	"github.com/geocoder89/userapi/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is everything the services need from a backend.
type Store interface {
	service.UserStore
	service.PageQuerier
}

// OpenStore connects to the configured driver and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.DBConfig, prom *observability.Prom) (Store, handlers.Pinger, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		d, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewUsersRepo(d, prom), d.PingContext, func() { _ = d.Close() }, nil
	case "postgres", "":
		pool, err := db.NewPool(ctx, cfg.DSN(), cfg.MaxConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if _, err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewUsersRepo(pool, prom), pool.Ping, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
}

type App struct {
	Router   *gin.Engine
	Users    *service.UserService
	Auth     *service.AuthService
	Tokens   *auth.Manager
	Registry *prometheus.Registry

	closers []func()
}

// New builds the full application. A nil reg gets a fresh registry.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	prom := observability.NewProm(reg)

	a := &App{Registry: reg}

	store, dbPing, closeStore, err := OpenStore(ctx, cfg.DB, prom)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	checks := map[string]handlers.Pinger{"db": dbPing}

	// pages stays a nil interface unless a cache is configured.
	var pages cache.PageCache
	switch {
	case cfg.ListCacheTTL > 0 && cfg.Redis.Addr != "":
		rc := redisclient.New(redisclient.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = rc.Close() })
		checks["redis"] = rc.Ping
		pages = cache.NewRedisPages(rc.Raw(), cfg.ListCacheTTL, log)
	case cfg.ListCacheTTL > 0:
		mem := cache.NewMemoryPages(cfg.ListCacheTTL)
		a.closers = append(a.closers, sweepEvery(mem, cfg.ListCacheTTL))
		pages = mem
	}

	hasher := security.NewHasher()
	a.Tokens = auth.NewManager(cfg.JWTSecret)

	engine := service.NewQueryEngine(store, pages, log)
	a.Users = service.NewUserService(store, hasher, engine, pages, log)
	a.Auth = service.NewAuthService(store, hasher, a.Tokens, pages, service.AuthConfig{AllowRegisterRole: cfg.AllowRegisterRole}, log)

	created, err := a.Users.EnsureAdmin(ctx, service.AdminSeed{
		Email:    cfg.Admin.Email,
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.InfoContext(ctx, "admin account seeded", "email", cfg.Admin.Email)
	}

	a.Router = httpx.NewRouter(log, httpx.Deps{
		Env:          cfg.Env,
		ServiceName:  cfg.OTel.ServiceName,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Auth:         a.Auth,
		Users:        a.Users,
		Authn:        auth.NewResolver(a.Tokens, store, log),
		Checks:       checks,
		Prom:         prom,
		Gatherer:     reg,
	})

	return a, nil
}

// Close releases stores and clients in reverse order of acquisition.
// sweepEvery drops expired pages on a ticker until the returned stop func runs.
func sweepEvery(p *cache.MemoryPages, every time.Duration) func() {
	ticker := time.NewTicker(every)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				p.Sweep()
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
