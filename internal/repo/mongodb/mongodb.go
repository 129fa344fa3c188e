// Package mongodb implements the repositories on MongoDB. Documents keep
// the _id and __v bookkeeping fields; neither reaches the domain types'
// JSON.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/pagination"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	collUsers    = "users"
	collTokens   = "tokens"
	collAbsences = "absenceentries"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
	prom   *observability.Prom
	// transactions need a replica set; standalone servers run without them
	transactions bool
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri, database string, transactions bool, prom *observability.Prom) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &DB{
		client:       client,
		db:           client.Database(database),
		prom:         prom,
		transactions: transactions,
	}, nil
}

func (d *DB) Close(ctx context.Context) error { return d.client.Disconnect(ctx) }

func (d *DB) Ping(ctx context.Context) error { return d.client.Ping(ctx, readpref.Primary()) }

func (d *DB) Users() *UsersRepo       { return &UsersRepo{d: d, c: d.db.Collection(collUsers)} }
func (d *DB) Tokens() *TokensRepo     { return &TokensRepo{d: d, c: d.db.Collection(collTokens)} }
func (d *DB) Absences() *AbsencesRepo { return &AbsencesRepo{d: d, c: d.db.Collection(collAbsences)} }

// EnsureIndexes creates the indexes the repositories rely on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		},
		collTokens: {
			{Keys: bson.D{{Key: "token", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "type", Value: 1}}},
		},
		collAbsences: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := d.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// WithinTx runs fn inside a session transaction when transactions are
// enabled. Otherwise each call stands alone.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !d.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (d *DB) observe(op string, fn func() error) error {
	if d.prom != nil {
		return d.prom.ObserveDB(op, fn)
	}
	return fn()
}

func objectID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	return oid, err == nil
}

func objectIDs(ids []string) []bson.ObjectID {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			out = append(out, oid)
		}
	}
	return out
}

// sortDoc renders the normalized sort against a field allow-list.
func sortDoc(sort []pagination.SortField, fields map[string]string) bson.D {
	out := bson.D{}
	for _, sf := range sort {
		name, ok := fields[sf.Field]
		if !ok {
			continue
		}
		dir := 1
		if sf.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: name, Value: dir})
	}
	if len(out) == 0 {
		out = append(out, bson.E{Key: "_id", Value: 1})
	}
	return out
}

func findOptions(q pagination.Query, fields map[string]string) *options.FindOptionsBuilder {
	return options.Find().
		SetSort(sortDoc(q.Sort, fields)).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
}

// and folds conditions into one filter document.
func and(conds []bson.M) bson.M {
	switch len(conds) {
	case 0:
		return bson.M{}
	case 1:
		return conds[0]
	default:
		arr := make(bson.A, 0, len(conds))
		for _, c := range conds {
			arr = append(arr, c)
		}
		return bson.M{"$and": arr}
	}
}
