// Package handler exposes the services over HTTP.
package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/studio/internal/store"
	"github.com/makeasinger/studio/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}

// serviceError maps a service error onto the response envelope; what names
// the missing record for 404s.
func serviceError(c *fiber.Ctx, err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return response.NotFound(c, what+" not found")
	}
	return response.ServiceError(c, err.Error())
}

// bind parses and validates the request body into req. It writes the error
// response itself and reports whether the handler should continue.
func bind(c *fiber.Ctx, v *validator.Validate, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := v.Struct(req); err != nil {
		return false, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return true, nil
}
