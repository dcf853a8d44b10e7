package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, role, created_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// mapErr translates driver errors into the user package's vocabulary.
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return user.ErrNotFound
	case IsUniqueViolation(err):
		return user.ErrEmailTaken
	default:
		return user.Storage(op, err)
	}
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u    user.User
		role string
	)

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		return user.User{}, err
	}

	u.Role = user.Role(role)
	return u, nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id int64) (user.User, error) {
	op := "users.find_by_id"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	op := "users.find_by_email"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) FindPage(ctx context.Context, pred user.Predicate, offset, limit int) ([]user.User, error) {
	op := "users.find_page"
	output := make([]user.User, 0, limit)

	where, args, next := pred.Where(user.Dollar, 1)

	// stable ordering for pagination
	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", next, next+1)
	args = append(args, limit, offset)

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return mapErr(op, err)
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return mapErr(op, err)
			}
			output = append(output, u)
		}

		return mapErr(op, rows.Err())
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *UsersRepo) Count(ctx context.Context, pred user.Predicate) (int, error) {
	op := "users.count"
	where, args, _ := pred.Where(user.Dollar, 1)

	var total int

	err := r.observe(op, func() error {
		return mapErr(op, r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total))
	})

	return total, err
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	op := "users.create"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (username, email, password_hash, role)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+userColumns,
			nu.Username, nu.Email, nu.PasswordHash, string(nu.Role),
		))
		return mapErr(op, err)
	})

	return u, err
}

// Update writes only the columns set in p. An empty patch returns the
// current row.
func (r *UsersRepo) Update(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	if p.Empty() {
		return r.FindByID(ctx, id)
	}

	op := "users.update"
	sets, args := p.Assignments(user.Dollar)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	op := "users.delete"

	return r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return mapErr(op, err)
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}
