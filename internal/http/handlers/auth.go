package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/http/middlewares"
	"github.com/geocoder89/userapi/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (user.User, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Profile(ctx context.Context, id user.Identity) (user.User, error)
}

type AuthHandler struct {
	svc AuthService
	log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, log: log}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72,password"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.Register(ctx.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"data":    u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.svc.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    res,
	})
}

func (h *AuthHandler) Profile(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	u, err := h.svc.Profile(ctx.Request.Context(), id)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Success get profile",
		"data":    u,
	})
}
