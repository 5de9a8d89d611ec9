package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Envelope is the body written for every successful API request.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData writes a successful envelope around data.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "Request body is required")
		}
		return domain.Invalid(op, "Invalid request body")
	}
	return nil
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct validation and converts failures into a
// *domain.ValidationError.
func validateRequest(v *validator.Validate, op string, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return domain.Invalid(op, "Invalid request")
	}

	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(errs))}
	for _, fe := range errs {
		ve.Fields[fe.Field()] = fieldMessage(fe)
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "gte":
		return "Must be at least " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
