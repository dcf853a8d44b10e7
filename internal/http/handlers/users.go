package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/http/middlewares"
	"github.com/geocoder89/userapi/internal/service"
	"github.com/gin-gonic/gin"
)

type UserService interface {
	Get(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, in service.CreateInput) (user.User, error)
	Update(ctx context.Context, actor user.Identity, id int64, in service.UpdateInput) (user.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q user.FilterQuery) (user.PageResult, error)
}

type UsersHandler struct {
	svc UserService
	log *slog.Logger
}

func NewUsersHandler(svc UserService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{svc: svc, log: log}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72,password"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

// UpdateUserRequest fields are optional; absent means unchanged. Unknown
// fields such as id or createdAt are ignored by the decoder.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=30"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72,password"`
	Role     *string `json:"role" binding:"omitempty,oneof=user admin"`
}

type pagination struct {
	Total       int `json:"total"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

type listFilters struct {
	Search string `json:"search"`
	Role   string `json:"role"`
}

type ListUsersResponse struct {
	Users      []user.User `json:"users"`
	Pagination pagination  `json:"pagination"`
	Filters    listFilters `json:"filters"`
}

// parseID answers 400 itself when the path id is not a positive integer.
func parseID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "User ID must be an integer", gin.H{
			"fields": []FieldError{{Field: "id", Rule: "int", Message: "must be a positive integer"}},
		})
		return 0, false
	}
	return id, true
}

func (h *UsersHandler) List(ctx *gin.Context) {
	role := ctx.Query("role")
	if role != "" && role != string(user.RoleUser) && role != string(user.RoleAdmin) {
		RespondBadRequest(ctx, "Role must be either admin or user", gin.H{
			"fields": []FieldError{{Field: "role", Rule: "oneof", Param: "admin user", Message: fieldMessage("role", "oneof", "admin user")}},
		})
		return
	}

	q := user.ParseFilterQuery(ctx.Query("page"), ctx.Query("limit"), ctx.Query("search"), role)

	res, err := h.svc.List(ctx.Request.Context(), q)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"data": ListUsersResponse{
			Users: res.Users,
			Pagination: pagination{
				Total:       res.TotalUsers,
				TotalPages:  res.TotalPages,
				CurrentPage: res.CurrentPage,
				Limit:       res.Limit,
			},
			Filters: listFilters{Search: q.Search, Role: q.Role},
		},
	})
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	u, err := h.svc.Get(ctx.Request.Context(), id)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"data": u})
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.Create(ctx.Request.Context(), service.CreateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.Header("Location", "/api/users/"+strconv.FormatInt(u.ID, 10))
	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"data":    u,
	})
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	actor, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var req UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.Update(ctx.Request.Context(), actor, id, service.UpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"data":    u,
	})
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	if err := h.svc.Delete(ctx.Request.Context(), id); err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
