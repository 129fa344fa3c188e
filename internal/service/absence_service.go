package service

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
)

// AbsenceQuery is the listing filter as requested. Name and Role match
// attributes of the owning user.
type AbsenceQuery struct {
	UserID *string
	Name   *string
	Role   *user.Role
	From   *time.Time
	To     *time.Time
}

type AbsenceService struct {
	absences AbsenceRepository
	users    UserRepository
	rights   auth.RoleRights
	now      func() time.Time
}

func NewAbsenceService(absences AbsenceRepository, users UserRepository, rights auth.RoleRights) *AbsenceService {
	return &AbsenceService{
		absences: absences,
		users:    users,
		rights:   rights,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func errAbsenceNotFound() *apperr.Error { return apperr.NotFound("Absence not found") }

// Create records an absence for req.UserID. Callers without manageUsers may
// only report their own.
func (s *AbsenceService) Create(ctx context.Context, caller user.User, req absence.CreateAbsenceRequest) (absence.Absence, error) {
	if !s.rights.Allowed(&caller, req.UserID, auth.PermManageUsers) {
		return absence.Absence{}, apperr.Forbidden("Forbidden")
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return absence.Absence{}, apperr.BadRequest("User not found")
		}
		return absence.Absence{}, err
	}

	a := absence.NewFromCreateRequest(req, s.now())
	if err := s.absences.Create(ctx, &a); err != nil {
		return absence.Absence{}, err
	}
	return a, nil
}

// Query pages through absences. Callers without getUsers only see their own.
func (s *AbsenceService) Query(ctx context.Context, caller user.User, aq AbsenceQuery, opts pagination.Options) (pagination.Result[absence.Absence], error) {
	q, err := pagination.Normalize(opts, absence.SortFields, absence.Relations)
	if err != nil {
		return pagination.Result[absence.Absence]{}, err
	}

	f := absence.Filter{UserID: aq.UserID, From: aq.From, To: aq.To}

	if !s.rights.HasAll(caller.Role, auth.PermGetUsers) {
		if aq.UserID != nil && *aq.UserID != caller.ID {
			return emptyPage[absence.Absence](q), nil
		}
		own := caller.ID
		f.UserID = &own
	}

	if aq.Name != nil || aq.Role != nil {
		ids, err := s.users.FindIDs(ctx, user.Filter{Name: aq.Name, Role: aq.Role})
		if err != nil {
			return pagination.Result[absence.Absence]{}, err
		}
		f.UserIDs = ids
		f.Restrict = true
	}

	res, err := pagination.Paginate(ctx, q,
		func(ctx context.Context) (int64, error) { return s.absences.Count(ctx, f) },
		func(ctx context.Context, q pagination.Query) ([]absence.Absence, error) {
			return s.absences.List(ctx, f, q)
		},
	)
	if err != nil {
		return res, err
	}

	if q.Populates("user") {
		if err := s.populateOwners(ctx, res.Results); err != nil {
			return pagination.Result[absence.Absence]{}, err
		}
	}
	return res, nil
}

func (s *AbsenceService) populateOwners(ctx context.Context, items []absence.Absence) error {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(items))
	for _, a := range items {
		if _, ok := seen[a.UserID]; !ok {
			seen[a.UserID] = struct{}{}
			ids = append(ids, a.UserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	owners, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]*user.User, len(owners))
	for i := range owners {
		byID[owners[i].ID] = &owners[i]
	}
	for i := range items {
		items[i].Owner = byID[items[i].UserID]
	}
	return nil
}

func (s *AbsenceService) Get(ctx context.Context, caller user.User, id string) (absence.Absence, error) {
	return s.load(ctx, caller, id, auth.PermGetUsers)
}

// Update applies a partial update. Only the owner or a manageUsers caller may edit.
func (s *AbsenceService) Update(ctx context.Context, caller user.User, id string, req absence.UpdateAbsenceRequest) (absence.Absence, error) {
	a, err := s.load(ctx, caller, id, auth.PermManageUsers)
	if err != nil {
		return absence.Absence{}, err
	}

	a.Apply(req)
	a.UpdatedAt = s.now()

	if err := s.absences.Update(ctx, &a); err != nil {
		if errors.Is(err, absence.ErrNotFound) {
			return absence.Absence{}, errAbsenceNotFound()
		}
		return absence.Absence{}, err
	}
	return a, nil
}

func (s *AbsenceService) Delete(ctx context.Context, caller user.User, id string) error {
	if _, err := s.load(ctx, caller, id, auth.PermManageUsers); err != nil {
		return err
	}

	if err := s.absences.Delete(ctx, id); err != nil {
		if errors.Is(err, absence.ErrNotFound) {
			return errAbsenceNotFound()
		}
		return err
	}
	return nil
}

func (s *AbsenceService) load(ctx context.Context, caller user.User, id string, perm auth.Permission) (absence.Absence, error) {
	a, err := s.absences.GetByID(ctx, id)
	if errors.Is(err, absence.ErrNotFound) {
		return absence.Absence{}, errAbsenceNotFound()
	}
	if err != nil {
		return absence.Absence{}, err
	}

	if !s.rights.Allowed(&caller, a.UserID, perm) {
		return absence.Absence{}, apperr.Forbidden("Forbidden")
	}
	return a, nil
}

func emptyPage[T any](q pagination.Query) pagination.Result[T] {
	return pagination.Result[T]{Results: []T{}, Page: q.Page, Limit: q.Limit}
}
