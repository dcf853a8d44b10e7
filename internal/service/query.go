package service

import (
	"context"
	"log/slog"

	"github.com/geocoder89/userapi/internal/cache"
	"github.com/geocoder89/userapi/internal/domain/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// QueryEngine answers filtered, paginated user listings.
type QueryEngine struct {
	store  PageQuerier
	pages  cache.PageCache
	log    *slog.Logger
	tracer trace.Tracer
}

// NewQueryEngine builds an engine; pages may be nil to disable caching.
func NewQueryEngine(store PageQuerier, pages cache.PageCache, log *slog.Logger) *QueryEngine {
	if log == nil {
		log = slog.Default()
	}
	return &QueryEngine{
		store:  store,
		pages:  pages,
		log:    log,
		tracer: otel.Tracer("github.com/geocoder89/userapi/internal/service"),
	}
}

// BuildPredicate turns a filter into a conjunction over fixed columns.
func BuildPredicate(q user.FilterQuery) user.Predicate {
	pred := user.MatchAll()

	if q.Search != "" {
		pred = pred.And(user.SearchCondition(q.Search))
	}

	if q.Role != "" {
		pred = pred.And(user.RoleCondition(q.Role))
	}

	return pred
}

// Run fetches the page and the total count concurrently and only returns once
// both have succeeded.
func (e *QueryEngine) Run(ctx context.Context, q user.FilterQuery) (user.PageResult, error) {
	q = q.Normalize()

	var gen cache.Generation
	if e.pages != nil {
		res, g, ok := e.pages.Get(ctx, q)
		if ok {
			e.log.DebugContext(ctx, "users.list.cache_hit", "page", q.Page, "limit", q.Limit)
			return res, nil
		}
		gen = g
	}

	ctx, span := e.tracer.Start(ctx, "users.list", trace.WithAttributes(
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
		attribute.Bool("search", q.Search != ""),
		attribute.String("role", q.Role),
	))
	defer span.End()

	pred := BuildPredicate(q)
	offset := q.Offset()

	var (
		rows  []user.User
		total int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, s := e.tracer.Start(gctx, "users.list.page")
		defer s.End()

		var err error
		rows, err = e.store.FindPage(c, pred, offset, q.Limit)
		return err
	})

	g.Go(func() error {
		c, s := e.tracer.Start(gctx, "users.list.count")
		defer s.End()

		var err error
		total, err = e.store.Count(c, pred)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list users failed")
		e.log.ErrorContext(ctx, "users.list_failed", "err", err)
		return user.PageResult{}, user.Storage("list_users", err)
	}

	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, u.Public())
	}

	res := user.PageResult{
		Users:       users,
		TotalUsers:  total,
		TotalPages:  user.TotalPages(total, q.Limit),
		CurrentPage: q.Page,
		Limit:       q.Limit,
	}

	e.log.DebugContext(ctx, "users.list", "returned", len(users), "total", total)

	if e.pages != nil {
		e.pages.Put(ctx, gen, q, res)
	}

	return res, nil
}
