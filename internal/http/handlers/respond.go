package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: middlewares.RequestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondServiceError maps a service error onto the status table. Anything
// unrecognised is logged and answered with a generic 500.
func RespondServiceError(ctx *gin.Context, log *slog.Logger, err error) {
	var ve *user.ValidationError

	switch {
	case errors.As(err, &ve):
		var details interface{}
		if ve.Field != "" {
			details = gin.H{"fields": []FieldError{{Field: ve.Field, Rule: "invalid", Message: ve.Message}}}
		}
		RespondBadRequest(ctx, ve.Message, details)
	case errors.Is(err, user.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthenticated):
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		RespondForbidden(ctx, "Forbidden. You do not have permission to access this resource.")
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email already in use")
	default:
		log.ErrorContext(ctx.Request.Context(), "request failed",
			"err", err,
			"route", ctx.FullPath(),
			"request_id", middlewares.RequestIDFrom(ctx),
		)
		RespondInternal(ctx, "Internal server error")
	}
}
