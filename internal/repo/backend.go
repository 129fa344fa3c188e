// Package repo selects the storage backend named by DB_DRIVER.
package repo

import (
	"context"
	"fmt"

	"github.com/geocoder89/absencehub/internal/config"
	"github.com/geocoder89/absencehub/internal/db"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/repo/memory"
	"github.com/geocoder89/absencehub/internal/repo/mongodb"
	"github.com/geocoder89/absencehub/internal/repo/postgres"
	"github.com/geocoder89/absencehub/internal/service"
)

// Backend bundles the repositories of one store.
type Backend struct {
	Driver   string
	Users    service.UserRepository
	Tokens   service.TokenRepository
	Absences service.AbsenceRepository
	Tx       service.Transactor
	Ping     func(ctx context.Context) error
	Close    func(ctx context.Context) error
}

// Open connects to the configured store and makes sure its schema or
// indexes exist.
func Open(ctx context.Context, cfg config.Config, prom *observability.Prom) (*Backend, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}

		store := postgres.New(pool, prom)
		return &Backend{
			Driver:   cfg.DBDriver,
			Users:    store.Users(),
			Tokens:   store.Tokens(),
			Absences: store.Absences(),
			Tx:       store,
			Ping:     store.Ping,
			Close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMongo:
		store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTransactions, prom)
		if err != nil {
			return nil, err
		}

		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}

		return &Backend{
			Driver:   cfg.DBDriver,
			Users:    store.Users(),
			Tokens:   store.Tokens(),
			Absences: store.Absences(),
			Tx:       store,
			Ping:     store.Ping,
			Close:    store.Close,
		}, nil

	case config.DriverMemory:
		store := memory.NewStore()
		return &Backend{
			Driver:   cfg.DBDriver,
			Users:    store.Users(),
			Tokens:   store.Tokens(),
			Absences: store.Absences(),
			Tx:       store,
			Ping:     store.Ping,
			Close:    func(context.Context) error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}
