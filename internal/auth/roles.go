package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// RequireStaff ensures the caller carries the staff capability.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.Participant.IsStaff() {
			return apperrors.NewAccessDenied()
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
