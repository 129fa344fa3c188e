package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const absenceColumns = `id, user_id, date, reason, revision, created_at, updated_at`

var absenceSortColumns = map[string]string{
	"date":      "date",
	"reason":    "reason",
	"createdAt": "created_at",
	"id":        "id",
}

type AbsencesRepo struct {
	db *DB
}

func scanAbsence(row pgx.Row) (absence.Absence, error) {
	var a absence.Absence
	err := row.Scan(&a.ID, &a.UserID, &a.Date, &a.Reason, &a.Revision, &a.CreatedAt, &a.UpdatedAt)
	a.Date = a.Date.UTC()
	return a, err
}

func (r *AbsencesRepo) Create(ctx context.Context, a *absence.Absence) error {
	a.ID = uuid.NewString()
	a.Revision = 0

	return r.db.observe("absences.create", func() error {
		_, err := r.db.q(ctx).Exec(ctx,
			`INSERT INTO absences (`+absenceColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.ID, a.UserID, a.Date, a.Reason, a.Revision, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})
}

func (r *AbsencesRepo) GetByID(ctx context.Context, id string) (absence.Absence, error) {
	if !validID(id) {
		return absence.Absence{}, absence.ErrNotFound
	}

	var a absence.Absence
	err := r.db.observe("absences.get_by_id", func() error {
		var err error
		a, err = scanAbsence(r.db.q(ctx).QueryRow(ctx, `SELECT `+absenceColumns+` FROM absences WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return absence.Absence{}, absence.ErrNotFound
		}
		return absence.Absence{}, err
	}
	return a, nil
}

func (r *AbsencesRepo) Update(ctx context.Context, a *absence.Absence) error {
	if !validID(a.ID) {
		return absence.ErrNotFound
	}

	err := r.db.observe("absences.update", func() error {
		return r.db.q(ctx).QueryRow(ctx, `
			UPDATE absences
			SET date = $2, reason = $3, updated_at = $4, revision = revision + 1
			WHERE id = $1
			RETURNING revision, created_at`,
			a.ID, a.Date, a.Reason, a.UpdatedAt,
		).Scan(&a.Revision, &a.CreatedAt)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return absence.ErrNotFound
	}
	return err
}

func (r *AbsencesRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return absence.ErrNotFound
	}

	var affected int64
	err := r.db.observe("absences.delete", func() error {
		tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM absences WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return absence.ErrNotFound
	}
	return nil
}

func absenceWhere(f absence.Filter) *whereBuilder {
	w := &whereBuilder{}
	if f.UserID != nil {
		if !validID(*f.UserID) {
			w.addRaw("false")
		} else {
			w.add("user_id = $%d", *f.UserID)
		}
	}
	if f.Restrict {
		w.add("user_id = ANY($%d)", validIDs(f.UserIDs))
	}
	if f.From != nil {
		w.add("date >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("date <= $%d", *f.To)
	}
	return w
}

func (r *AbsencesRepo) Count(ctx context.Context, f absence.Filter) (int64, error) {
	w := absenceWhere(f)

	var n int64
	err := r.db.observe("absences.count", func() error {
		return r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM absences`+w.sql(), w.args...).Scan(&n)
	})
	return n, err
}

func (r *AbsencesRepo) List(ctx context.Context, f absence.Filter, q pagination.Query) ([]absence.Absence, error) {
	w := absenceWhere(f)
	query := `SELECT ` + absenceColumns + ` FROM absences` + w.sql() + orderBy(q.Sort, absenceSortColumns)
	query += w.page(q)

	out := make([]absence.Absence, 0, min(q.Limit, pagination.MaxLimit))
	err := r.db.observe("absences.list", func() error {
		rows, err := r.db.q(ctx).Query(ctx, query, w.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAbsence(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}
