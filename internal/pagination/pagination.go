// Package pagination turns listing query options into a normalized query and
// runs the count and page fetch for it.
package pagination

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/geocoder89/absencehub/internal/apperr"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 10
	DefaultPage  = 1
	// MaxLimit caps the page size a client can ask for.
	MaxLimit = 100
	// MaxSkip bounds how deep a listing can page.
	MaxSkip = math.MaxInt32

	// DefaultSort applies when sortBy is empty.
	DefaultSort = "createdAt"
	// TieBreak is always appended so equal sort keys page deterministically.
	TieBreak = "id"
)

// Options are the raw listing options as they arrive on the query string.
type Options struct {
	SortBy   string `form:"sortBy"`
	Limit    int    `form:"limit"`
	Page     int    `form:"page"`
	Populate string `form:"populate"`
}

type SortField struct {
	Field string
	Desc  bool
}

// PopulatePath is one relation to expand, with its own nested expansions.
type PopulatePath struct {
	Path     string
	Populate []PopulatePath
}

// Query is the normalized form handed to repositories.
type Query struct {
	Sort     []SortField
	Limit    int
	Page     int
	Skip     int
	Populate []PopulatePath
}

// Populates reports whether path is requested at the top level.
func (q Query) Populates(path string) bool {
	for _, p := range q.Populate {
		if p.Path == path {
			return true
		}
	}
	return false
}

type Result[T any] struct {
	Results      []T   `json:"results"`
	Page         int   `json:"page"`
	Limit        int   `json:"limit"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
}

// ParseSort reads "field:desc,other" into sort fields. Any order other than
// "desc" is ascending; empty segments are skipped.
func ParseSort(sortBy string) []SortField {
	var out []SortField
	for _, part := range strings.Split(sortBy, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, order, _ := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		out = append(out, SortField{Field: field, Desc: strings.TrimSpace(order) == "desc"})
	}
	return out
}

// ParsePopulate reads "a.b,a.c,d" into a tree: a{b,c}, d.
func ParsePopulate(populate string) []PopulatePath {
	var out []PopulatePath
	for _, part := range strings.Split(populate, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = insertPath(out, strings.Split(part, "."))
	}
	return out
}

func insertPath(tree []PopulatePath, segs []string) []PopulatePath {
	if len(segs) == 0 || segs[0] == "" {
		return tree
	}
	for i := range tree {
		if tree[i].Path == segs[0] {
			tree[i].Populate = insertPath(tree[i].Populate, segs[1:])
			return tree
		}
	}
	return append(tree, PopulatePath{Path: segs[0], Populate: insertPath(nil, segs[1:])})
}

// Normalize applies defaults and checks sort fields and populate paths against
// what the collection allows. sortable maps request names to canonical field
// names; relations maps each top-level relation to its allowed nested paths.
func Normalize(opts Options, sortable map[string]string, relations map[string]map[string]struct{}) (Query, error) {
	q := Query{Limit: opts.Limit, Page: opts.Page}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	q.Limit = min(q.Limit, MaxLimit)
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Page-1 > MaxSkip/q.Limit {
		return Query{}, apperr.BadRequest("page is out of range")
	}
	q.Skip = (q.Page - 1) * q.Limit

	requested := ParseSort(opts.SortBy)
	if len(requested) == 0 {
		requested = []SortField{{Field: DefaultSort}}
	}

	hasTieBreak := false
	for _, sf := range requested {
		canonical, ok := sortable[sf.Field]
		if !ok && sf.Field != TieBreak {
			return Query{}, apperr.BadRequest(fmt.Sprintf("Invalid sort field %q", sf.Field))
		}
		if sf.Field == TieBreak {
			canonical = TieBreak
			hasTieBreak = true
		}
		q.Sort = append(q.Sort, SortField{Field: canonical, Desc: sf.Desc})
	}
	if !hasTieBreak {
		q.Sort = append(q.Sort, SortField{Field: TieBreak})
	}

	q.Populate = ParsePopulate(opts.Populate)
	for _, p := range q.Populate {
		nested, ok := relations[p.Path]
		if !ok {
			return Query{}, apperr.BadRequest(fmt.Sprintf("Invalid populate path %q", p.Path))
		}
		for _, child := range p.Populate {
			if _, ok := nested[child.Path]; !ok || len(child.Populate) > 0 {
				return Query{}, apperr.BadRequest(fmt.Sprintf("Invalid populate path %q", p.Path+"."+child.Path))
			}
		}
	}

	return q, nil
}

func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

type CountFunc func(ctx context.Context) (int64, error)

type FetchFunc[T any] func(ctx context.Context, q Query) ([]T, error)

// Paginate counts and fetches concurrently and waits for both. A failure in
// either cancels the other.
func Paginate[T any](ctx context.Context, q Query, count CountFunc, fetch FetchFunc[T]) (Result[T], error) {
	var (
		total int64
		items []T
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := count(gctx)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	g.Go(func() error {
		rows, err := fetch(gctx, q)
		if err != nil {
			return err
		}
		items = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result[T]{}, err
	}

	if items == nil {
		items = []T{}
	}

	return Result[T]{
		Results:      items,
		Page:         q.Page,
		Limit:        q.Limit,
		TotalPages:   TotalPages(total, q.Limit),
		TotalResults: total,
	}, nil
}
