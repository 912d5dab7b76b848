package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/praveenbiet/elephant/internal/auth/dto"
	"github.com/praveenbiet/elephant/internal/auth/password"
	"github.com/praveenbiet/elephant/internal/auth/service"
	autherror "github.com/praveenbiet/elephant/internal/errors"
)

type AuthHandler struct {
	authService         *service.AuthService
	registrationService *service.RegistrationService
	tokenService        service.TokenGenerator
	requireVerification bool
	validate            *validator.Validate
}

func NewAuthHandler(
	authService *service.AuthService,
	registrationService *service.RegistrationService,
	tokenService service.TokenGenerator,
	requireVerification bool,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		registrationService: registrationService,
		tokenService:        tokenService,
		requireVerification: requireVerification,
		validate:            validator.New(),
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	user, err := h.registrationService.Register(c.Context(), input, h.requireVerification)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())
	input.Fingerprint = c.Get("X-Device-Fingerprint")

	tokens, err := h.authService.Login(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())
	input.Fingerprint = c.Get("X-Device-Fingerprint")

	tokens, err := h.authService.Refresh(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var input dto.LogoutInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Context(), input.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ForgotPassword always answers 202: the response must not reveal whether
// the address has an account.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	if err := h.authService.RequestPasswordReset(c.Context(), input.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "if the email exists, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(c.Context(), input.Token, input.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "password has been reset"})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var input dto.ChangePasswordInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	if err := h.authService.ChangePassword(c.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "password has been changed"})
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var input dto.VerifyEmailInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	user, err := h.registrationService.VerifyEmail(c.Context(), input.Token)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var input dto.ResendVerificationInput
	if err := h.parse(c, &input); err != nil {
		return err
	}

	if err := h.registrationService.ResendVerification(c.Context(), input.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "if the email needs verification, a link has been sent",
	})
}

// PasswordStrength is the advisory scorer for signup UX. It never rejects
// anything; policy enforcement happens on registration.
func (h *AuthHandler) PasswordStrength(c *fiber.Ctx) error {
	candidate := c.Query("password")
	score := password.Strength(candidate)

	return c.Status(fiber.StatusOK).JSON(dto.PasswordStrengthOutput{
		Score: score,
		Label: password.StrengthLabel(score),
	})
}

const localUserID = "user_id"

// RequireAuth extracts and verifies the bearer access token, storing the
// subject in request locals.
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	claims, err := h.tokenService.VerifyAccessToken(strings.TrimPrefix(header, prefix))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid access token"})
	}

	c.Locals(localUserID, claims.Subject)
	return c.Next()
}

func (h *AuthHandler) parse(c *fiber.Ctx, input any) error {
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return nil
}

// respondError maps service error kinds to transport statuses. Policy
// violations carry the full list of reasons; infrastructure failures come
// back as 503 so clients know a retry may help.
func respondError(c *fiber.Ctx, err error) error {
	if pv, ok := autherror.AsPolicyViolations(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      "password policy violated",
			"violations": pv.Violations,
		})
	}

	switch {
	case errors.Is(err, autherror.ErrInvalidCredentials),
		errors.Is(err, autherror.ErrInvalidRefreshToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrInactiveAccount):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrInvalidResetToken),
		errors.Is(err, autherror.ErrInvalidVerificationToken):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service temporarily unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
