package domain

// LoginRequest - credentials for the first login step
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse - credentials accepted, login OTP sent
type LoginResponse struct {
	Success   bool   `json:"success"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

// ForgotPasswordRequest - start of the password reset flow
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordResponse - reset OTP sent
type ForgotPasswordResponse struct {
	Success   bool   `json:"success"`
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
}

// ResetPasswordRequest - new password after the reset OTP was verified
type ResetPasswordRequest struct {
	AccountID       string `json:"account_id" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ResetPasswordResponse - password replaced
type ResetPasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
