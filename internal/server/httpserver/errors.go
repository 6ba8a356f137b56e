package httpserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/mailtoken/internal/common"
)

// errorClass maps a service error to an HTTP status and a short, stable
// label safe to return to clients and use as a metric value.
func errorClass(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrUnknownUser):
		return fiber.StatusNotFound, "unknown user"
	case errors.Is(err, common.ErrConfig):
		return fiber.StatusInternalServerError, "server misconfigured"
	case errors.Is(err, common.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, "store unavailable"
	case errors.Is(err, common.ErrMalformedToken):
		return fiber.StatusBadRequest, "malformed token"
	case errors.Is(err, common.ErrConstraintViolation):
		return fiber.StatusConflict, "already exists"
	case errors.Is(err, common.ErrValidation):
		return fiber.StatusBadRequest, "invalid request"
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}
