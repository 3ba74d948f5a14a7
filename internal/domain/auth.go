package domain

import "time"

// RegisterRequest - registration form submission
type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// RegisterResponse - registration accepted, OTP sent
type RegisterResponse struct {
	Success   bool   `json:"success"`
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
}

// VerifyOTPRequest - OTP confirmation for any purpose
type VerifyOTPRequest struct {
	AccountID string  `json:"account_id" validate:"required"`
	Code      string  `json:"code" validate:"required,min=4,max=10,numeric"`
	Purpose   Purpose `json:"purpose" validate:"required,oneof=login register reset_password"`
}

// VerifyOTPResponse - session token issued after OTP verification
type VerifyOTPResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResendOTPRequest - request a fresh OTP for a running flow
type ResendOTPRequest struct {
	AccountID string  `json:"account_id" validate:"required"`
	Purpose   Purpose `json:"purpose" validate:"required,oneof=login register reset_password"`
}

// ResendOTPResponse - fresh OTP sent
type ResendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProfileResponse - the authenticated account
type ProfileResponse struct {
	AccountID  string    `json:"account_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}
