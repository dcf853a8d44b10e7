// Package sqlite stores users in a local SQLite database through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/mattn/go-sqlite3"
)

const userColumns = `id, username, email, password_hash, role, created_at`

type UsersRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewUsersRepo(db *sql.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func IsUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	return errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return user.ErrNotFound
	case IsUniqueViolation(err):
		return user.ErrEmailTaken
	default:
		return user.Storage(op, err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (user.User, error) {
	var (
		u    user.User
		role string
	)

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, timestamp{&u.CreatedAt}); err != nil {
		return user.User{}, err
	}

	u.Role = user.Role(role)
	return u, nil
}

// timestamp scans created_at whether the driver hands back a time.Time (a
// DATETIME column) or the raw text (expressions such as RETURNING).
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(v any) error {
	var raw string

	switch x := v.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = x.UTC()
		return nil
	case string:
		raw = x
	case []byte:
		raw = string(x)
	default:
		return fmt.Errorf("created_at: unsupported type %T", v)
	}

	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("created_at: unrecognized timestamp %q", raw)
}

func (r *UsersRepo) FindByID(ctx context.Context, id int64) (user.User, error) {
	op := "users.find_by_id"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	op := "users.find_by_email"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) FindPage(ctx context.Context, pred user.Predicate, offset, limit int) ([]user.User, error) {
	op := "users.find_page"
	output := make([]user.User, 0, limit)

	where, args, _ := pred.Where(user.Question, 1)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	err := r.observe(op, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
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
	where, args, _ := pred.Where(user.Question, 1)

	var total int

	err := r.observe(op, func() error {
		return mapErr(op, r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total))
	})

	return total, err
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	op := "users.create"
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRowContext(ctx,
			`INSERT INTO users (username, email, password_hash, role)
			 VALUES (?, ?, ?, ?)
			 RETURNING `+userColumns,
			nu.Username, nu.Email, nu.PasswordHash, string(nu.Role),
		))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) Update(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	if p.Empty() {
		return r.FindByID(ctx, id)
	}

	op := "users.update"
	sets, args := p.Assignments(user.Question)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ? RETURNING %s`, strings.Join(sets, ", "), userColumns)

	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRowContext(ctx, query, args...))
		return mapErr(op, err)
	})

	return u, err
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	op := "users.delete"

	return r.observe(op, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return mapErr(op, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return mapErr(op, err)
		}
		if n == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}
