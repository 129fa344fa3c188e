package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userDoc struct {
	ID                bson.ObjectID `bson:"_id,omitempty"`
	Name              string        `bson:"name"`
	Email             string        `bson:"email"`
	Password          string        `bson:"password"`
	Role              string        `bson:"role"`
	IsEmailVerified   bool          `bson:"isEmailVerified"`
	EmployeeID        string        `bson:"employeeID,omitempty"`
	Projects          []string      `bson:"projects"`
	TechnicalRole     string        `bson:"technicalRole,omitempty"`
	Designation       string        `bson:"designation,omitempty"`
	SupportingAccount *string       `bson:"supportingAccount,omitempty"`
	V                 int           `bson:"__v"`
	CreatedAt         time.Time     `bson:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt"`
}

func userToDoc(u user.User) userDoc {
	oid, _ := objectID(u.ID)
	projects := u.Projects
	if projects == nil {
		projects = []string{}
	}
	return userDoc{
		ID:                oid,
		Name:              u.Name,
		Email:             u.Email,
		Password:          u.PasswordHash,
		Role:              string(u.Role),
		IsEmailVerified:   u.IsEmailVerified,
		EmployeeID:        u.EmployeeID,
		Projects:          projects,
		TechnicalRole:     u.TechnicalRole,
		Designation:       u.Designation,
		SupportingAccount: u.SupportingAccount,
		V:                 u.Revision,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (d userDoc) toDomain() user.User {
	projects := d.Projects
	if projects == nil {
		projects = []string{}
	}
	return user.User{
		ID:                d.ID.Hex(),
		Name:              d.Name,
		Email:             d.Email,
		PasswordHash:      d.Password,
		Role:              user.Role(d.Role),
		IsEmailVerified:   d.IsEmailVerified,
		EmployeeID:        d.EmployeeID,
		Projects:          projects,
		TechnicalRole:     d.TechnicalRole,
		Designation:       d.Designation,
		SupportingAccount: d.SupportingAccount,
		Revision:          d.V,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

var userSortFields = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "createdAt",
	"id":        "_id",
}

type UsersRepo struct {
	d *DB
	c *mongo.Collection
}

func (r *UsersRepo) Create(ctx context.Context, u *user.User) error {
	doc := userToDoc(*u)
	doc.ID = bson.NewObjectID()
	doc.V = 0

	err := r.d.observe("users.create", func() error {
		_, err := r.c.InsertOne(ctx, doc)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrEmailTaken
	}
	if err != nil {
		return err
	}

	u.ID = doc.ID.Hex()
	u.Revision = 0
	u.Projects = doc.Projects
	return nil
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var doc userDoc
	err := r.d.observe(op, func() error {
		return r.c.FindOne(ctx, filter).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return doc.toDomain(), nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": oid})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": email})
}

func (r *UsersRepo) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []user.User{}, nil
	}
	return r.find(ctx, "users.get_by_ids", bson.M{"_id": bson.M{"$in": oids}}, nil)
}

func (r *UsersRepo) IsEmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	filter := bson.M{"email": email}
	if oid, ok := objectID(excludeID); ok {
		filter["_id"] = bson.M{"$ne": oid}
	}

	var n int64
	err := r.d.observe("users.email_taken", func() error {
		var err error
		n, err = r.c.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		return err
	})
	return n > 0, err
}

// Update replaces the mutable fields and increments __v.
func (r *UsersRepo) Update(ctx context.Context, u *user.User) error {
	oid, ok := objectID(u.ID)
	if !ok {
		return user.ErrNotFound
	}

	doc := userToDoc(*u)
	set := bson.M{
		"name":              doc.Name,
		"email":             doc.Email,
		"password":          doc.Password,
		"role":              doc.Role,
		"isEmailVerified":   doc.IsEmailVerified,
		"employeeID":        doc.EmployeeID,
		"projects":          doc.Projects,
		"technicalRole":     doc.TechnicalRole,
		"designation":       doc.Designation,
		"supportingAccount": doc.SupportingAccount,
		"updatedAt":         doc.UpdatedAt,
	}

	var updated userDoc
	err := r.d.observe("users.update", func() error {
		return r.c.FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": set, "$inc": bson.M{"__v": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	})

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return user.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return user.ErrEmailTaken
	case err != nil:
		return err
	}

	u.Revision = updated.V
	u.CreatedAt = updated.CreatedAt.UTC()
	return nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return user.ErrNotFound
	}

	var res *mongo.DeleteResult
	err := r.d.observe("users.delete", func() error {
		var err error
		res, err = r.c.DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func userFilter(f user.Filter) bson.M {
	filter := bson.M{}
	if f.Name != nil {
		filter["name"] = *f.Name
	}
	if f.Role != nil {
		filter["role"] = string(*f.Role)
	}
	return filter
}

func (r *UsersRepo) Count(ctx context.Context, f user.Filter) (int64, error) {
	var n int64
	err := r.d.observe("users.count", func() error {
		var err error
		n, err = r.c.CountDocuments(ctx, userFilter(f))
		return err
	})
	return n, err
}

func (r *UsersRepo) List(ctx context.Context, f user.Filter, q pagination.Query) ([]user.User, error) {
	return r.find(ctx, "users.list", userFilter(f), findOptions(q, userSortFields))
}

func (r *UsersRepo) FindIDs(ctx context.Context, f user.Filter) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	err := r.d.observe("users.find_ids", func() error {
		cur, err := r.c.Find(ctx, userFilter(f), opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

func (r *UsersRepo) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptionsBuilder) ([]user.User, error) {
	var docs []userDoc
	err := r.d.observe(op, func() error {
		var (
			cur *mongo.Cursor
			err error
		)
		if opts != nil {
			cur, err = r.c.Find(ctx, filter, opts)
		} else {
			cur, err = r.c.Find(ctx, filter)
		}
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]user.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
