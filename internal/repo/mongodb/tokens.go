package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/token"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// tokenDoc stores the keyed hash in the token field.
type tokenDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Token       string        `bson:"token"`
	User        bson.ObjectID `bson:"user"`
	Type        string        `bson:"type"`
	Expires     time.Time     `bson:"expires"`
	Blacklisted bool          `bson:"blacklisted"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

func (d tokenDoc) toDomain() token.Token {
	return token.Token{
		ID:          d.ID.Hex(),
		TokenHash:   d.Token,
		UserID:      d.User.Hex(),
		Type:        token.Type(d.Type),
		ExpiresAt:   d.Expires.UTC(),
		Blacklisted: d.Blacklisted,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

type TokensRepo struct {
	d *DB
	c *mongo.Collection
}

var errBadUserID = errors.New("token owner id is not an ObjectID")

func (r *TokensRepo) Create(ctx context.Context, t *token.Token) error {
	owner, ok := objectID(t.UserID)
	if !ok {
		return errBadUserID
	}

	doc := tokenDoc{
		ID:          bson.NewObjectID(),
		Token:       t.TokenHash,
		User:        owner,
		Type:        string(t.Type),
		Expires:     t.ExpiresAt,
		Blacklisted: t.Blacklisted,
		CreatedAt:   t.CreatedAt,
	}

	err := r.d.observe("tokens.create", func() error {
		_, err := r.c.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return err
	}

	t.ID = doc.ID.Hex()
	return nil
}

func (r *TokensRepo) FindActive(ctx context.Context, hash string, typ token.Type) (token.Token, error) {
	var doc tokenDoc
	err := r.d.observe("tokens.find_active", func() error {
		return r.c.FindOne(ctx, bson.M{"token": hash, "type": string(typ), "blacklisted": false}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return token.Token{}, token.ErrNotFound
	}
	if err != nil {
		return token.Token{}, err
	}
	return doc.toDomain(), nil
}

func (r *TokensRepo) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return token.ErrNotFound
	}

	var res *mongo.DeleteResult
	err := r.d.observe("tokens.delete", func() error {
		var err error
		res, err = r.c.DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return token.ErrNotFound
	}
	return nil
}

func (r *TokensRepo) DeleteAllOfType(ctx context.Context, userID string, typ token.Type) (int64, error) {
	owner, ok := objectID(userID)
	if !ok {
		return 0, nil
	}

	var res *mongo.DeleteResult
	err := r.d.observe("tokens.delete_all_of_type", func() error {
		var err error
		res, err = r.c.DeleteMany(ctx, bson.M{"user": owner, "type": string(typ)})
		return err
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
