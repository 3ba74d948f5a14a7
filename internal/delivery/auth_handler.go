package delivery

import (
	"auth-service/internal/domain"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Register - creates an unverified account and sends a register OTP
func (h *Handler) Register(c *fiber.Ctx) error {
	var req domain.RegisterRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	res, err := h.auth.Register(c.UserContext(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.logger.Info("registration rejected", zap.String("email", req.Email), zap.Error(err))
		return respondServiceError(c, err)
	}

	return respondCreated(c, domain.RegisterResponse{
		Success:   true,
		AccountID: res.AccountID,
		Message:   "Account created, verification code sent",
	})
}

// VerifyOTP - confirms an OTP of any purpose and returns a session token.
// A verified reset_password code also clears the account for one password reset.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req domain.VerifyOTPRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	res, err := h.auth.VerifyOTP(c.UserContext(), req.AccountID, req.Code, req.Purpose)
	if err != nil {
		return respondServiceError(c, err)
	}

	if res.Purpose == domain.PurposeResetPassword {
		h.grants.Grant(res.AccountID)
	}

	return respondOK(c, domain.VerifyOTPResponse{
		Success:   true,
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
	})
}

// ResendOTP - issues a fresh code for a flow in progress
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req domain.ResendOTPRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	if err := h.auth.ResendOTP(c.UserContext(), req.AccountID, req.Purpose); err != nil {
		return respondServiceError(c, err)
	}

	return respondOK(c, domain.ResendOTPResponse{
		Success: true,
		Message: "Verification code sent",
	})
}

// Me - profile of the bearer token's account
func (h *Handler) Me(c *fiber.Ctx) error {
	account, ok := c.Locals(accountLocal).(*domain.Account)
	if !ok {
		return respondUnauthorized(c, "Unauthorized")
	}

	return respondOK(c, domain.ProfileResponse{
		AccountID:  account.ID,
		FullName:   account.FullName,
		Email:      account.Email,
		IsVerified: account.IsVerified,
		CreatedAt:  account.CreatedAt,
	})
}
