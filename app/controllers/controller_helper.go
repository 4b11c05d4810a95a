package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

// respondError renders a typed error as the JSON shape API clients consume.
// Unknown errors collapse to an opaque 500 so internals never leak.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	body := fiber.Map{"error": errorSlug(status)}

	var (
		ve *apperrors.ValidationError
		ae *apperrors.AuthError
		ee *apperrors.EntitlementError
		re *apperrors.RateLimitError
		xe *apperrors.ExecutionError
	)
	switch {
	case errors.As(err, &ve):
		body["message"] = ve.Error()
		if ve.Field != "" {
			body["field"] = ve.Field
		}
	case errors.As(err, &ae):
		body["message"] = ae.Error()
	case errors.As(err, &ee):
		body["message"] = ee.Reason
		body["code"] = ee.Code
	case errors.As(err, &re):
		body["message"] = re.Error()
		body["retry_after_seconds"] = int(re.RetryAfter.Seconds())
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(re.RetryAfter.Seconds())))
	case errors.As(err, &xe):
		body["message"] = "scan execution failed"
		body["kind"] = xe.Kind
	default:
		log.Errorf("internal error: %v", err)
		body["message"] = "internal server error"
	}

	return c.Status(status).JSON(body)
}

func errorSlug(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusTooManyRequests:
		return "too_many_requests"
	case fiber.StatusBadGateway:
		return "scan_failed"
	default:
		return "internal_server_error"
	}
}
