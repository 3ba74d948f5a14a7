package delivery

import (
	"errors"
	"slices"
	"strings"

	"auth-service/internal/domain"
	"auth-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	accountLocal = "account"
	claimsLocal  = "claims"
)

type Handler struct {
	auth     *service.AuthService
	grants   *service.ResetGrantStore
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(auth *service.AuthService, grants *service.ResetGrantStore, logger *zap.Logger) *Handler {
	return &Handler{
		auth:     auth,
		grants:   grants,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the auth API under router.
func (h *Handler) Routes(router fiber.Router) {
	auth := router.Group("/auth")

	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	auth.Post("/otp/verify", h.VerifyOTP)
	auth.Post("/otp/resend", h.ResendOTP)

	auth.Post("/password/forgot", h.ForgotPassword)
	auth.Post("/password/reset", h.RequireAuth(domain.PurposeResetPassword), h.ResetPassword)

	auth.Get("/me", h.RequireAuth(domain.PurposeLogin), h.Me)
}

// bind parses the JSON body into req and runs its validate tags.
// On failure the error response is already written and ok is false.
func (h *Handler) bind(c *fiber.Ctx, req interface{}) (ok bool, err error) {
	if err := c.BodyParser(req); err != nil {
		h.logger.Debug("failed to parse request body", zap.String("path", c.Path()), zap.Error(err))
		return false, respondBadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return false, respondBadRequest(c, "Validation failed", validationDetails(err))
	}
	return true, nil
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + " failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// RequireAuth accepts a session token from the Authorization header that
// was minted for one of purposes, and stores the resolved account and claims
// in c.Locals.
func (h *Handler) RequireAuth(purposes ...domain.Purpose) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return respondUnauthorized(c, "Unauthorized - bearer token required")
		}

		account, claims, err := h.auth.Authenticate(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			h.logger.Debug("token rejected", zap.Error(err))
			status, code := classify(err)
			if status == fiber.StatusNotFound {
				// token for an account that no longer exists
				return respondUnauthorized(c, "Unauthorized - account not found")
			}
			if status == fiber.StatusInternalServerError {
				return respondWithError(c, status, code, "internal server error")
			}
			return respondWithError(c, status, code, err.Error())
		}

		if !slices.Contains(purposes, claims.Purpose) {
			h.logger.Debug("token purpose rejected",
				zap.String("account_id", account.ID),
				zap.String("purpose", string(claims.Purpose)),
				zap.String("path", c.Path()))
			return respondServiceError(c, domain.ErrTokenPurpose)
		}

		c.Locals(accountLocal, account)
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}
