package delivery

import (
	"auth-service/internal/domain"
	"auth-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Login - first login step: checks credentials and sends a login OTP
func (h *Handler) Login(c *fiber.Ctx) error {
	var req domain.LoginRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		return respondServiceError(c, err)
	}

	return respondOK(c, domain.LoginResponse{
		Success:   true,
		AccountID: res.AccountID,
		Email:     res.Email,
		Message:   "Verification code sent",
	})
}

// ForgotPassword - sends a reset_password OTP
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req domain.ForgotPasswordRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	res, err := h.auth.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondOK(c, domain.ForgotPasswordResponse{
		Success:   true,
		AccountID: res.AccountID,
		Message:   "Password reset code sent",
	})
}

// ResetPassword - sets a new password. Requires the bearer token returned by
// the reset_password OTP verification, issued for the same account.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req domain.ResetPasswordRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	claims, ok := c.Locals(claimsLocal).(*service.Claims)
	if !ok {
		return respondUnauthorized(c, "Unauthorized")
	}
	if claims.Subject != req.AccountID {
		h.logger.Warn("password reset for another account rejected",
			zap.String("token_subject", claims.Subject),
			zap.String("account_id", req.AccountID))
		return respondServiceError(c, domain.ErrResetNotAuthorized)
	}
	if !h.grants.Active(req.AccountID) {
		return respondServiceError(c, domain.ErrResetNotAuthorized)
	}

	if _, err := h.auth.ResetPassword(c.UserContext(), req.AccountID, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}
	h.grants.Consume(req.AccountID)

	h.logger.Info("password reset completed", zap.String("account_id", req.AccountID))
	return respondOK(c, domain.ResetPasswordResponse{
		Success: true,
		Message: "Password updated",
	})
}
