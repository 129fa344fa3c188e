package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/pagination"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type absenceDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	User      bson.ObjectID `bson:"user"`
	Date      time.Time     `bson:"date"`
	Reason    string        `bson:"reason"`
	V         int           `bson:"__v"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d absenceDoc) toDomain() absence.Absence {
	return absence.Absence{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Date:      d.Date.UTC(),
		Reason:    d.Reason,
		Revision:  d.V,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

var absenceSortFields = map[string]string{
	"date":      "date",
	"reason":    "reason",
	"createdAt": "createdAt",
	"id":        "_id",
}

type AbsencesRepo struct {
	d *DB
	c *mongo.Collection
}

func (r *AbsencesRepo) Create(ctx context.Context, a *absence.Absence) error {
	owner, ok := objectID(a.UserID)
	if !ok {
		return errBadUserID
	}

	doc := absenceDoc{
		ID:        bson.NewObjectID(),
		User:      owner,
		Date:      a.Date,
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}

	err := r.d.observe("absences.create", func() error {
		_, err := r.c.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return err
	}

	a.ID = doc.ID.Hex()
	a.Revision = 0
	return nil
}

func (r *AbsencesRepo) GetByID(ctx context.Context, id string) (absence.Absence, error) {
	oid, ok := objectID(id)
	if !ok {
		return absence.Absence{}, absence.ErrNotFound
	}

	var doc absenceDoc
	err := r.d.observe("absences.get_by_id", func() error {
		return r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return absence.Absence{}, absence.ErrNotFound
	}
	if err != nil {
		return absence.Absence{}, err
	}
	return doc.toDomain(), nil
}

func (r *AbsencesRepo) Update(ctx context.Context, a *absence.Absence) error {
	oid, ok := objectID(a.ID)
	if !ok {
		return absence.ErrNotFound
	}

	var updated absenceDoc
	err := r.d.observe("absences.update", func() error {
		return r.c.FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{
				"$set": bson.M{"date": a.Date, "reason": a.Reason, "updatedAt": a.UpdatedAt},
				"$inc": bson.M{"__v": 1},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return absence.ErrNotFound
	}
	if err != nil {
		return err
	}

	a.Revision = updated.V
	a.CreatedAt = updated.CreatedAt.UTC()
	return nil
}

func (r *AbsencesRepo) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return absence.ErrNotFound
	}

	var res *mongo.DeleteResult
	err := r.d.observe("absences.delete", func() error {
		var err error
		res, err = r.c.DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return absence.ErrNotFound
	}
	return nil
}

func absenceFilter(f absence.Filter) bson.M {
	var conds []bson.M

	if f.UserID != nil {
		oid, ok := objectID(*f.UserID)
		if !ok {
			// matches nothing
			oid = bson.NilObjectID
		}
		conds = append(conds, bson.M{"user": oid})
	}
	if f.Restrict {
		conds = append(conds, bson.M{"user": bson.M{"$in": objectIDs(f.UserIDs)}})
	}
	if f.From != nil {
		conds = append(conds, bson.M{"date": bson.M{"$gte": *f.From}})
	}
	if f.To != nil {
		conds = append(conds, bson.M{"date": bson.M{"$lte": *f.To}})
	}

	return and(conds)
}

func (r *AbsencesRepo) Count(ctx context.Context, f absence.Filter) (int64, error) {
	var n int64
	err := r.d.observe("absences.count", func() error {
		var err error
		n, err = r.c.CountDocuments(ctx, absenceFilter(f))
		return err
	})
	return n, err
}

func (r *AbsencesRepo) List(ctx context.Context, f absence.Filter, q pagination.Query) ([]absence.Absence, error) {
	var docs []absenceDoc
	err := r.d.observe("absences.list", func() error {
		cur, err := r.c.Find(ctx, absenceFilter(f), findOptions(q, absenceSortFields))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]absence.Absence, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
