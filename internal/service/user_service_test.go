package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/geocoder89/absencehub/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateUserByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.createUser(t, "Ada", "ada@example.com", user.RoleUser)
	env.createUser(t, "Bob", "bob@example.com", user.RoleUser)

	t.Run("email taken by someone else", func(t *testing.T) {
		email := "BOB@example.com"
		_, err := env.users.UpdateUserByID(ctx, ada.ID, user.UpdateUserRequest{Email: &email})
		e := requireStatus(t, err, http.StatusBadRequest)
		assert.Equal(t, "Email already taken", e.Message)
	})

	t.Run("own email is not a conflict", func(t *testing.T) {
		email := "ada@example.com"
		_, err := env.users.UpdateUserByID(ctx, ada.ID, user.UpdateUserRequest{Email: &email})
		assert.NoError(t, err)
	})

	t.Run("password is re-hashed", func(t *testing.T) {
		pw := "changed99"
		got, err := env.users.UpdateUserByID(ctx, ada.ID, user.UpdateUserRequest{Password: &pw})
		require.NoError(t, err)
		assert.NotEqual(t, pw, got.PasswordHash)
		assert.NoError(t, security.CheckPassword(got.PasswordHash, pw))
	})

	t.Run("revision increments", func(t *testing.T) {
		before, err := env.users.GetUserByID(ctx, ada.ID)
		require.NoError(t, err)
		d := "Lead"
		after, err := env.users.UpdateUserByID(ctx, ada.ID, user.UpdateUserRequest{Designation: &d})
		require.NoError(t, err)
		assert.Equal(t, before.Revision+1, after.Revision)
	})

	t.Run("missing user", func(t *testing.T) {
		d := "Lead"
		_, err := env.users.UpdateUserByID(ctx, "missing", user.UpdateUserRequest{Designation: &d})
		e := requireStatus(t, err, http.StatusNotFound)
		assert.Equal(t, "User not found", e.Message)
	})
}

func TestDeleteUserByID_DropsTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "Ada", "ada@example.com", user.RoleUser)

	tokens, err := env.tokens.GenerateAuthTokens(ctx, u)
	require.NoError(t, err)

	require.NoError(t, env.users.DeleteUserByID(ctx, u.ID))

	_, err = env.tokens.FindActive(ctx, tokens.Refresh.Token, token.TypeRefresh)
	assert.ErrorIs(t, err, token.ErrNotFound)

	requireStatus(t, env.users.DeleteUserByID(ctx, u.ID), http.StatusNotFound)
}

func TestQueryUsers_FiltersAndPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"Cleo", "Ada", "Bob", "Dan", "Eve"} {
		env.createUser(t, name, name+"@example.com", user.RoleUser)
	}
	env.createUser(t, "Root", "root@example.com", user.RoleAdmin)

	res, err := env.users.QueryUsers(ctx, user.Filter{}, pagination.Options{SortBy: "name", Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.TotalResults)
	assert.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "Cleo", res.Results[0].Name)
	assert.Equal(t, "Dan", res.Results[1].Name)

	admin := user.RoleAdmin
	res, err = env.users.QueryUsers(ctx, user.Filter{Role: &admin}, pagination.Options{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Root", res.Results[0].Name)

	_, err = env.users.QueryUsers(ctx, user.Filter{}, pagination.Options{SortBy: "password"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.users.EnsureAdmin(ctx, "", "Admin@Example.com", "adminpass1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.users.EnsureAdmin(ctx, "", "admin@example.com", "adminpass1")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := env.users.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
}

func TestImportUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "Taken", "taken@example.com", user.RoleUser)

	report, err := env.users.ImportUsers(ctx, []ImportRecord{
		{EmployeeID: float64(1042), Name: "Ada", Email: "ada@example.com", Projects: "apollo, gemini", TechnicalRole: "Backend", SupportingAccount: "acme"},
		{EmployeeID: "E-7", Name: "NoMail"},
		{EmployeeID: "E-8", Name: "Dup", Email: "TAKEN@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 2, report.Skipped[0].Row)
	assert.Equal(t, "missing email", report.Skipped[0].Reason)
	assert.Equal(t, "email already taken", report.Skipped[1].Reason)

	ada, err := env.users.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1042", ada.EmployeeID)
	assert.Equal(t, []string{"apollo", "gemini"}, ada.Projects)
	assert.Equal(t, "Backend", ada.TechnicalRole)
	require.NotNil(t, ada.SupportingAccount)
	assert.Equal(t, "acme", *ada.SupportingAccount)
	assert.Equal(t, user.RoleUser, ada.Role)
}
