package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AuthWorkflow interface {
	Register(ctx context.Context, req user.RegisterRequest) (user.User, token.AuthTokens, error)
	Login(ctx context.Context, email, password string) (user.User, token.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshAuth(ctx context.Context, refreshToken string) (token.AuthTokens, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	SendVerificationEmail(ctx context.Context, u user.User) error
	VerifyEmail(ctx context.Context, verifyToken string) error
}

type AuthHandler struct {
	auth AuthWorkflow
}

func NewAuthHandler(auth AuthWorkflow) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,password"`
}

// TokenQuery carries the emailed token on reset and verify links.
type TokenQuery struct {
	Token string `form:"token" binding:"required"`
}

type authResponse struct {
	User   user.User        `json:"user"`
	Tokens token.AuthTokens `json:"tokens"`
}

// requestTimeout bounds work done on behalf of a request, mail included.
const requestTimeout = 10 * time.Second

func withTimeout(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	u, tokens, err := h.auth.Register(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, authResponse{User: u, Tokens: tokens})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	u, tokens, err := h.auth.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, authResponse{User: u, Tokens: tokens})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	var req RefreshTokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.auth.Logout(cctx, req.RefreshToken); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) RefreshTokens(ctx *gin.Context) {
	var req RefreshTokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	tokens, err := h.auth.RefreshAuth(cctx, req.RefreshToken)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.auth.ForgotPassword(cctx, req.Email); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var q TokenQuery
	if !BindQuery(ctx, &q) {
		return
	}

	var req ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.auth.ResetPassword(cctx, q.Token, req.Password); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) SendVerificationEmail(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondErr(ctx, apperr.Unauthorized("Please authenticate"))
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.auth.SendVerificationEmail(cctx, u); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(ctx *gin.Context) {
	var q TokenQuery
	if !BindQuery(ctx, &q) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.auth.VerifyEmail(cctx, q.Token); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
