package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
	"github.com/samirrijal/superres/internal/pkg/geospatial"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

// errServiceError maps an error from the use cases onto a response.
func errServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, geospatial.ErrInvalidDMS):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, artifacts.ErrArtifactNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrJobRunning):
		return errConflict(c, err.Error())
	case errors.Is(err, artifacts.ErrUnsupportedRaster):
		return newError(c, fiber.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}
