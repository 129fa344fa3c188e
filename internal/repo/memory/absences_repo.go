package memory

import (
	"context"
	"slices"

	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/google/uuid"
)

type absenceRow = absence.Absence

type AbsencesRepo struct {
	s *Store
}

func (r *AbsencesRepo) Create(_ context.Context, a *absence.Absence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a.ID = uuid.NewString()
	a.Revision = 0
	a.Owner = nil
	r.s.absences[a.ID] = *a
	return nil
}

func (r *AbsencesRepo) GetByID(_ context.Context, id string) (absence.Absence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.absences[id]
	if !ok {
		return absence.Absence{}, absence.ErrNotFound
	}
	return a, nil
}

func (r *AbsencesRepo) Update(_ context.Context, a *absence.Absence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.absences[a.ID]
	if !ok {
		return absence.ErrNotFound
	}

	a.Revision = cur.Revision + 1
	a.CreatedAt = cur.CreatedAt
	row := *a
	row.Owner = nil
	r.s.absences[a.ID] = row
	return nil
}

func (r *AbsencesRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.absences[id]; !ok {
		return absence.ErrNotFound
	}
	delete(r.s.absences, id)
	return nil
}

func matchAbsence(a absence.Absence, f absence.Filter) bool {
	if f.UserID != nil && a.UserID != *f.UserID {
		return false
	}
	if f.Restrict && !slices.Contains(f.UserIDs, a.UserID) {
		return false
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	return true
}

func (r *AbsencesRepo) filtered(f absence.Filter) []absence.Absence {
	var out []absence.Absence
	for _, a := range r.s.absences {
		if matchAbsence(a, f) {
			out = append(out, a)
		}
	}
	return out
}

func (r *AbsencesRepo) Count(_ context.Context, f absence.Filter) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.filtered(f))), nil
}

func (r *AbsencesRepo) List(_ context.Context, f absence.Filter, q pagination.Query) ([]absence.Absence, error) {
	r.s.mu.RLock()
	items := r.filtered(f)
	r.s.mu.RUnlock()

	return sortAndPage(items, q, absenceField), nil
}

func absenceField(a absence.Absence, field string) any {
	switch field {
	case "date":
		return a.Date
	case "reason":
		return a.Reason
	case "createdAt":
		return a.CreatedAt
	default:
		return a.ID
	}
}
