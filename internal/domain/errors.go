package domain

import "errors"

var (
	// Auth errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("account is not verified")
	ErrAlreadyExists      = errors.New("account with this email already exists")
	ErrAccountNotFound    = errors.New("account not found")

	// OTP errors
	ErrInvalidOTP      = errors.New("invalid OTP code")
	ErrOTPExpired      = errors.New("OTP code has expired")
	ErrTooManyAttempts = errors.New("maximum OTP attempts exceeded")

	// Store errors
	ErrNotFound = errors.New("record not found")

	// Token errors
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenPurpose = errors.New("token was not issued for this action")

	// Reset errors
	ErrResetNotAuthorized = errors.New("password reset was not confirmed with an OTP")

	// Request errors
	ErrInvalidPurpose = errors.New("unknown OTP purpose")
)
