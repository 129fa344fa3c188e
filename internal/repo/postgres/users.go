package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, role, is_email_verified, employee_id,
	projects, technical_role, designation, supporting_account, revision, created_at, updated_at`

var userSortColumns = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
	"id":        "id",
}

type UsersRepo struct {
	db *DB
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsEmailVerified,
		&u.EmployeeID,
		&u.Projects,
		&u.TechnicalRole,
		&u.Designation,
		&u.SupportingAccount,
		&u.Revision,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if u.Projects == nil {
		u.Projects = []string{}
	}
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u *user.User) error {
	u.ID = uuid.NewString()
	u.Revision = 0
	if u.Projects == nil {
		u.Projects = []string{}
	}

	err := r.db.observe("users.create", func() error {
		_, err := r.db.q(ctx).Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsEmailVerified, u.EmployeeID,
			u.Projects, u.TechnicalRole, u.Designation, u.SupportingAccount, u.Revision, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if IsUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	return err
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User
	err := r.db.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	return r.getOne(ctx, "users.get_by_id", "id = $1", id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", "email = $1", email)
}

func (r *UsersRepo) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	ids = validIDs(ids)
	out := make([]user.User, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	err := r.db.observe("users.get_by_ids", func() error {
		rows, err := r.db.q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

func (r *UsersRepo) IsEmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := r.db.observe("users.email_taken", func() error {
		if excludeID == "" || !validID(excludeID) {
			return r.db.q(ctx).QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email,
			).Scan(&taken)
		}
		return r.db.q(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID,
		).Scan(&taken)
	})
	return taken, err
}

// Update writes every mutable column and bumps the revision.
func (r *UsersRepo) Update(ctx context.Context, u *user.User) error {
	if !validID(u.ID) {
		return user.ErrNotFound
	}

	err := r.db.observe("users.update", func() error {
		return r.db.q(ctx).QueryRow(ctx, `
			UPDATE users
			SET name = $2, email = $3, password_hash = $4, role = $5, is_email_verified = $6,
				employee_id = $7, projects = $8, technical_role = $9, designation = $10,
				supporting_account = $11, updated_at = $12, revision = revision + 1
			WHERE id = $1
			RETURNING revision, created_at`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsEmailVerified,
			u.EmployeeID, u.Projects, u.TechnicalRole, u.Designation,
			u.SupportingAccount, u.UpdatedAt,
		).Scan(&u.Revision, &u.CreatedAt)
	})

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return user.ErrNotFound
	case IsUniqueViolation(err):
		return user.ErrEmailTaken
	default:
		return err
	}
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return user.ErrNotFound
	}

	var affected int64
	err := r.db.observe("users.delete", func() error {
		tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func userWhere(f user.Filter) *whereBuilder {
	w := &whereBuilder{}
	if f.Name != nil {
		w.add("name = $%d", *f.Name)
	}
	if f.Role != nil {
		w.add("role = $%d", string(*f.Role))
	}
	return w
}

func (r *UsersRepo) Count(ctx context.Context, f user.Filter) (int64, error) {
	w := userWhere(f)

	var n int64
	err := r.db.observe("users.count", func() error {
		return r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&n)
	})
	return n, err
}

func (r *UsersRepo) List(ctx context.Context, f user.Filter, q pagination.Query) ([]user.User, error) {
	w := userWhere(f)
	query := `SELECT ` + userColumns + ` FROM users` + w.sql() + orderBy(q.Sort, userSortColumns)
	query += w.page(q)

	out := make([]user.User, 0, min(q.Limit, pagination.MaxLimit))
	err := r.db.observe("users.list", func() error {
		rows, err := r.db.q(ctx).Query(ctx, query, w.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

func (r *UsersRepo) FindIDs(ctx context.Context, f user.Filter) ([]string, error) {
	w := userWhere(f)

	ids := []string{}
	err := r.db.observe("users.find_ids", func() error {
		rows, err := r.db.q(ctx).Query(ctx, `SELECT id FROM users`+w.sql(), w.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}
