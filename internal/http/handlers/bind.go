package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body into out. On failure it has already
// written the error response and returns false.
func BindJSON(ctx *gin.Context, out any) bool {
	RegisterValidators()

	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var (
		tooLarge  *http.MaxBytesError
		invalid   validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &tooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
	case errors.Is(err, io.EOF):
		RespondBadRequest(ctx, "Request body is required", nil)
	case errors.As(err, &invalid):
		fields := fieldErrors(invalid)
		RespondBadRequest(ctx, fields[0].Message, gin.H{"fields": fields})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		RespondBadRequest(ctx, "Malformed JSON body", gin.H{"json": "invalid_json_syntax"})
	case errors.As(err, &typeErr):
		// Field is already the JSON key path ("role", "profile.name").
		field := typeErr.Field
		RespondBadRequest(ctx, "Invalid request body", gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("%s must be of type %s", label(field), typeErr.Type.String()),
			}},
		})
	default:
		RespondBadRequest(ctx, "Invalid request body", nil)
	}

	return false
}

// fieldErrors relies on the json tag-name func installed by
// RegisterValidators, so Field() is the client-facing key.
func fieldErrors(invalid validator.ValidationErrors) []FieldError {
	fields := make([]FieldError, 0, len(invalid))

	for _, fe := range invalid {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe.Field(), fe.Tag(), fe.Param()),
		})
	}

	return fields
}

// fieldMessage renders one failed rule as a sentence for the client.
func fieldMessage(field, rule, param string) string {
	name := label(field)

	switch rule {
	case "required":
		return name + " is required"
	case "email":
		return "Please provide a valid email address"
	case "min", "max":
		if field == "username" {
			return "Username must be between 3 and 30 characters"
		}
		if rule == "min" {
			return fmt.Sprintf("%s must be at least %s characters", name, param)
		}
		return fmt.Sprintf("%s must be at most %s characters", name, param)
	case "oneof":
		return fmt.Sprintf("%s must be either %s", name, strings.ReplaceAll(param, " ", " or "))
	case "password":
		return "Password must contain a number and an uppercase letter"
	default:
		return fmt.Sprintf("%s failed %s validation", name, rule)
	}
}

func label(field string) string {
	if field == "" {
		return "Value"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}
