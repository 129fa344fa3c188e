package auth

import (
	"slices"

	"github.com/geocoder89/absencehub/internal/domain/user"
)

type Permission string

const (
	PermGetUsers    Permission = "getUsers"
	PermManageUsers Permission = "manageUsers"
)

// RoleRights is a read-only view over the role table.
type RoleRights struct {
	rights map[user.Role][]Permission
}

var defaultRights = NewRoleRights(map[user.Role][]Permission{
	user.RoleUser:  {},
	user.RoleAdmin: {PermGetUsers, PermManageUsers},
})

// DefaultRights returns the built-in role table.
func DefaultRights() RoleRights { return defaultRights }

// NewRoleRights copies the table so later edits to the input have no effect.
func NewRoleRights(table map[user.Role][]Permission) RoleRights {
	cp := make(map[user.Role][]Permission, len(table))
	for role, perms := range table {
		cp[role] = slices.Clone(perms)
	}
	return RoleRights{rights: cp}
}

// Rights returns a copy of the permissions granted to role.
func (r RoleRights) Rights(role user.Role) []Permission {
	return slices.Clone(r.rights[role])
}

func (r RoleRights) Roles() []user.Role {
	out := make([]user.Role, 0, len(r.rights))
	for role := range r.rights {
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}

// HasAll reports whether role is granted every permission in required.
// An unknown role holds no permissions.
func (r RoleRights) HasAll(role user.Role, required ...Permission) bool {
	granted := r.rights[role]
	for _, p := range required {
		if !slices.Contains(granted, p) {
			return false
		}
	}
	return true
}

// Allowed is the access decision for a route: the caller passes when it holds
// every required permission or when the request targets its own record.
func (r RoleRights) Allowed(caller *user.User, subjectID string, required ...Permission) bool {
	if caller == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	if r.HasAll(caller.Role, required...) {
		return true
	}
	return subjectID != "" && subjectID == caller.ID
}
