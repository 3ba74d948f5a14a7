package delivery

import (
	"errors"

	"auth-service/internal/domain"
	"auth-service/internal/rate"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse - standard error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrInvalidToken, fiber.StatusUnauthorized, "invalid_token"},
	{domain.ErrNotVerified, fiber.StatusForbidden, "not_verified"},
	{domain.ErrTokenPurpose, fiber.StatusForbidden, "wrong_token_purpose"},
	{domain.ErrResetNotAuthorized, fiber.StatusForbidden, "reset_not_authorized"},
	{domain.ErrAlreadyExists, fiber.StatusConflict, "already_exists"},
	{domain.ErrInvalidOTP, fiber.StatusBadRequest, "invalid_otp"},
	{domain.ErrInvalidPurpose, fiber.StatusBadRequest, "invalid_purpose"},
	{domain.ErrOTPExpired, fiber.StatusGone, "otp_expired"},
	{domain.ErrTooManyAttempts, fiber.StatusTooManyRequests, "too_many_attempts"},
	{rate.ErrTooSoon, fiber.StatusTooManyRequests, "too_soon"},
	{rate.ErrBlocked, fiber.StatusTooManyRequests, "blocked"},
	{domain.ErrAccountNotFound, fiber.StatusNotFound, "account_not_found"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// respondWithError - writes an error body
func respondWithError(c *fiber.Ctx, status int, code, message string, details ...string) error {
	resp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	return c.Status(status).JSON(resp)
}

// respondServiceError - maps a service error onto its status
func respondServiceError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status == fiber.StatusInternalServerError {
		return respondWithError(c, status, code, "internal server error")
	}
	return respondWithError(c, status, code, err.Error())
}

// respondBadRequest - validation error (400)
func respondBadRequest(c *fiber.Ctx, message string, details ...string) error {
	return respondWithError(c, fiber.StatusBadRequest, "invalid_request", message, details...)
}

// respondUnauthorized - missing or rejected credentials (401)
func respondUnauthorized(c *fiber.Ctx, message string) error {
	return respondWithError(c, fiber.StatusUnauthorized, "unauthorized", message)
}

func respondCreated(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func respondOK(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(data)
}
