package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/gin-gonic/gin"
)

type UserManager interface {
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	QueryUsers(ctx context.Context, f user.Filter, opts pagination.Options) (pagination.Result[user.User], error)
	GetUserByID(ctx context.Context, id string) (user.User, error)
	UpdateUserByID(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error)
	DeleteUserByID(ctx context.Context, id string) error
}

type UsersHandler struct {
	users UserManager
}

func NewUsersHandler(users UserManager) *UsersHandler {
	return &UsersHandler{users: users}
}

// ListUsersQuery is the query string of GET /v1/users.
type ListUsersQuery struct {
	Name string `form:"name"`
	Role string `form:"role" binding:"omitempty,oneof=user admin"`
	pagination.Options
}

func (q ListUsersQuery) Filter() user.Filter {
	var f user.Filter
	if q.Name != "" {
		name := q.Name
		f.Name = &name
	}
	if q.Role != "" {
		role := user.Role(q.Role)
		f.Role = &role
	}
	return f
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	u, err := h.users.CreateUser(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	var q ListUsersQuery

	if !BindQuery(ctx, &q) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := h.users.QueryUsers(cctx, q.Filter(), q.Options)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := requireID(ctx, "userId")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	u, err := h.users.GetUserByID(cctx, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := requireID(ctx, "userId")
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.IsEmpty() {
		RespondErr(ctx, apperr.BadRequest("At least one field must be provided"))
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	u, err := h.users.UpdateUserByID(cctx, id, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := requireID(ctx, "userId")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.users.DeleteUserByID(cctx, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
