// Package memory keeps every collection in process maps. It backs tests and
// local demos; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/absencehub/internal/pagination"
)

// Store owns the shared lock for the users, tokens and absences maps.
type Store struct {
	mu sync.RWMutex

	users    map[string]userRow
	tokens   map[string]tokenRow
	absences map[string]absenceRow
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]userRow),
		tokens:   make(map[string]tokenRow),
		absences: make(map[string]absenceRow),
	}
}

func (s *Store) Users() *UsersRepo       { return &UsersRepo{s: s} }
func (s *Store) Tokens() *TokensRepo     { return &TokensRepo{s: s} }
func (s *Store) Absences() *AbsencesRepo { return &AbsencesRepo{s: s} }

// WithinTx runs fn directly. Each repository call is atomic on its own; a
// sequence of calls is not.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Ping(context.Context) error { return nil }

// compareValues orders the field values the repositories sort on.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case time.Time:
		return x.Compare(b.(time.Time))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int:
		return cmp.Compare(x, b.(int))
	default:
		return 0
	}
}

func sortAndPage[T any](items []T, q pagination.Query, field func(T, string) any) []T {
	slices.SortStableFunc(items, func(a, b T) int {
		for _, sf := range q.Sort {
			c := compareValues(field(a, sf.Field), field(b, sf.Field))
			if sf.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	if q.Skip < 0 || q.Skip >= len(items) {
		return []T{}
	}
	end := q.Skip + min(q.Limit, len(items)-q.Skip)
	return items[q.Skip:end]
}
