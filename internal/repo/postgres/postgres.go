// Package postgres implements the repositories on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is what both the pool and an open transaction offer.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// DB is shared by the repositories; WithinTx makes them join one transaction.
type DB struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func New(pool *pgxpool.Pool, prom *observability.Prom) *DB {
	return &DB{pool: pool, prom: prom}
}

func (db *DB) Users() *UsersRepo       { return &UsersRepo{db: db} }
func (db *DB) Tokens() *TokensRepo     { return &TokensRepo{db: db} }
func (db *DB) Absences() *AbsencesRepo { return &AbsencesRepo{db: db} }

func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

func (db *DB) observe(op string, fn func() error) error {
	if db.prom != nil {
		return db.prom.ObserveDB(op, fn)
	}
	return fn()
}

// q returns the transaction carried by ctx, or the pool.
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.pool
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// WithinTx runs fn in a transaction. Nested calls reuse the outer one.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// validID filters ids that cannot match a uuid column, so lookups report
// not-found instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}

// whereBuilder collects numbered conditions.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders the normalized sort against a column allow-list.
func orderBy(sort []pagination.SortField, columns map[string]string) string {
	parts := make([]string, 0, len(sort))
	for _, sf := range sort {
		col, ok := columns[sf.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return " ORDER BY id ASC"
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// page appends LIMIT/OFFSET placeholders.
func (w *whereBuilder) page(q pagination.Query) string {
	w.args = append(w.args, q.Limit, q.Skip)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}
