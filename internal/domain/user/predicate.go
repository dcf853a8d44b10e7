package user

import (
	"fmt"
	"strings"
)

// Condition is one SQL fragment of a predicate. Every value is bound through a
// "?" marker in SQL and supplied in Args, in order.
//
// Where rewrites every '?' rune in SQL, including one inside a string literal
// or comment, so SQL must not contain a literal question mark. Bind such a
// value through Args instead.
type Condition struct {
	SQL  string
	Args []any
}

// Predicate is an AND of conditions. The zero value matches every row.
type Predicate struct {
	conds []Condition
}

func MatchAll() Predicate {
	return Predicate{}
}

func (p Predicate) And(c Condition) Predicate {
	next := make([]Condition, len(p.conds), len(p.conds)+1)
	copy(next, p.conds)
	p.conds = append(next, c)
	return p
}

func (p Predicate) Conditions() []Condition {
	return p.conds
}

// Placeholder renders the n-th (1-based) bound parameter for a SQL dialect.
type Placeholder func(n int) string

// Dollar renders postgres-style $1, $2, ...
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question renders sqlite/mysql-style ?.
func Question(int) string { return "?" }

// Where renders the predicate as a WHERE clause (empty when it matches all)
// with parameters numbered from start. It returns the args in order and the
// next free parameter index.
func (p Predicate) Where(ph Placeholder, start int) (string, []any, int) {
	if len(p.conds) == 0 {
		return "", nil, start
	}

	n := start
	parts := make([]string, 0, len(p.conds))
	var args []any

	for _, c := range p.conds {
		var b strings.Builder
		for _, r := range c.SQL {
			if r == '?' {
				b.WriteString(ph(n))
				n++
				continue
			}
			b.WriteRune(r)
		}
		parts = append(parts, "("+b.String()+")")
		args = append(args, c.Args...)
	}

	return " WHERE " + strings.Join(parts, " AND "), args, n
}

// SearchCondition matches search as a case-insensitive substring of username
// or email. LIKE wildcards in search are escaped so they match literally.
func SearchCondition(search string) Condition {
	pattern := "%" + escapeLike(strings.ToLower(search)) + "%"

	return Condition{
		SQL:  `LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`,
		Args: []any{pattern, pattern},
	}
}

func RoleCondition(role string) Condition {
	return Condition{SQL: "role = ?", Args: []any{role}}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
