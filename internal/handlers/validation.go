package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; tag parsing is cached per struct type.
var validate = validator.New()

// ValidateRequest runs struct tag validation on a decoded request body
// and reports the first failing field in a client-safe message.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	first := ve[0]
	return fmt.Errorf("validation failed: %s: %s", first.Field(), describeFailure(first))
}

// describeFailure maps the tags used by this API's request types to
// plain-English messages
func describeFailure(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
