package memory

import (
	"context"
	"slices"

	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/google/uuid"
)

type userRow = user.User

type UsersRepo struct {
	s *Store
}

func clone(u user.User) user.User {
	u.Projects = slices.Clone(u.Projects)
	if u.SupportingAccount != nil {
		acct := *u.SupportingAccount
		u.SupportingAccount = &acct
	}
	return u
}

func (r *UsersRepo) emailOwner(email string) (string, bool) {
	for id, u := range r.s.users {
		if u.Email == email {
			return id, true
		}
	}
	return "", false
}

func (r *UsersRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.emailOwner(u.Email); taken {
		return user.ErrEmailTaken
	}

	u.ID = uuid.NewString()
	u.Revision = 0
	if u.Projects == nil {
		u.Projects = []string{}
	}
	r.s.users[u.ID] = clone(*u)
	return nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.emailOwner(email)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(r.s.users[id]), nil
}

func (r *UsersRepo) GetByIDs(_ context.Context, ids []string) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (r *UsersRepo) IsEmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.emailOwner(email)
	return ok && id != excludeID, nil
}

func (r *UsersRepo) Update(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.users[u.ID]
	if !ok {
		return user.ErrNotFound
	}
	if id, taken := r.emailOwner(u.Email); taken && id != u.ID {
		return user.ErrEmailTaken
	}

	u.Revision = cur.Revision + 1
	u.CreatedAt = cur.CreatedAt
	r.s.users[u.ID] = clone(*u)
	return nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

func matchUser(u user.User, f user.Filter) bool {
	if f.Name != nil && u.Name != *f.Name {
		return false
	}
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	return true
}

func (r *UsersRepo) filtered(f user.Filter) []user.User {
	var out []user.User
	for _, u := range r.s.users {
		if matchUser(u, f) {
			out = append(out, clone(u))
		}
	}
	return out
}

func (r *UsersRepo) Count(_ context.Context, f user.Filter) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.filtered(f))), nil
}

func (r *UsersRepo) List(_ context.Context, f user.Filter, q pagination.Query) ([]user.User, error) {
	r.s.mu.RLock()
	items := r.filtered(f)
	r.s.mu.RUnlock()

	return sortAndPage(items, q, userField), nil
}

func (r *UsersRepo) FindIDs(_ context.Context, f user.Filter) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := []string{}
	for _, u := range r.filtered(f) {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func userField(u user.User, field string) any {
	switch field {
	case "name":
		return u.Name
	case "email":
		return u.Email
	case "role":
		return string(u.Role)
	case "createdAt":
		return u.CreatedAt
	default:
		return u.ID
	}
}
