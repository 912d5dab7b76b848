package handler

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")
	v1.Post("/register", h.Register)
	v1.Post("/login", h.Login)
	v1.Post("/refresh", h.Refresh)
	v1.Delete("/session", h.Logout)

	v1.Post("/verify-email", h.VerifyEmail)
	v1.Post("/verify-email/resend", h.ResendVerification)

	v1.Post("/password/forgot", h.ForgotPassword)
	v1.Post("/password/reset", h.ResetPassword)
	v1.Post("/password/change", h.RequireAuth, h.ChangePassword)
	v1.Get("/password/strength", h.PasswordStrength)
}
