package auth

import (
	"testing"

	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/stretchr/testify/assert"
)

func TestDefaultRights(t *testing.T) {
	r := DefaultRights()

	assert.Empty(t, r.Rights(user.RoleUser))
	assert.ElementsMatch(t, []Permission{PermGetUsers, PermManageUsers}, r.Rights(user.RoleAdmin))
	assert.Equal(t, []user.Role{user.RoleAdmin, user.RoleUser}, r.Roles())
}

func TestRoleRights_IsImmutable(t *testing.T) {
	table := map[user.Role][]Permission{user.RoleAdmin: {PermGetUsers}}
	r := NewRoleRights(table)

	table[user.RoleAdmin][0] = PermManageUsers
	assert.True(t, r.HasAll(user.RoleAdmin, PermGetUsers))

	got := r.Rights(user.RoleAdmin)
	got[0] = PermManageUsers
	assert.True(t, r.HasAll(user.RoleAdmin, PermGetUsers))
	assert.False(t, r.HasAll(user.RoleAdmin, PermManageUsers))
}

func TestAllowed(t *testing.T) {
	r := DefaultRights()
	admin := &user.User{ID: "a1", Role: user.RoleAdmin}
	member := &user.User{ID: "u1", Role: user.RoleUser}

	tests := []struct {
		name    string
		caller  *user.User
		subject string
		perms   []Permission
		want    bool
	}{
		{"no caller", nil, "", nil, false},
		{"no permissions required", member, "", nil, true},
		{"admin has rights", admin, "u1", []Permission{PermManageUsers}, true},
		{"user lacks rights", member, "u2", []Permission{PermGetUsers}, false},
		{"user targets self", member, "u1", []Permission{PermManageUsers}, true},
		{"empty subject never matches", &user.User{Role: user.RoleUser}, "", []Permission{PermGetUsers}, false},
		{"unknown role", &user.User{ID: "x", Role: "guest"}, "y", []Permission{PermGetUsers}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Allowed(tt.caller, tt.subject, tt.perms...))
		})
	}
}
