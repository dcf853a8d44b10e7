package user

import (
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type FilterQuery struct {
	Page   int
	Limit  int
	Search string
	Role   string
}

// ParseFilterQuery builds a FilterQuery from raw query-string values.
// Unparsable numbers count as missing; the result is already normalized.
func ParseFilterQuery(page, limit, search, role string) FilterQuery {
	p, _ := strconv.Atoi(strings.TrimSpace(page))
	l, _ := strconv.Atoi(strings.TrimSpace(limit))

	return FilterQuery{
		Page:   p,
		Limit:  l,
		Search: strings.TrimSpace(search),
		Role:   strings.TrimSpace(role),
	}.Normalize()
}

// Normalize clamps page to >= 1 and resets an out-of-range limit to the default.
func (q FilterQuery) Normalize() FilterQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		q.Limit = DefaultLimit
	}
	return q
}

func (q FilterQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type PageResult struct {
	Users       []User `json:"users"`
	TotalUsers  int    `json:"totalUsers"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
	Limit       int    `json:"limit"`
}

// TotalPages is ceil(total/limit), and 0 when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
