package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// PrincipalLocalsKey is the fiber locals key holding the *Principal.
const PrincipalLocalsKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Participant domain.Participant
}

// ID returns the participant id.
func (p *Principal) ID() string {
	return p.Participant.ID
}

// AuthMiddleware validates bearer tokens and resolves the caller through the user directory.
type AuthMiddleware struct {
	tokens    *TokenManager
	directory repository.UserDirectory
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, directory repository.UserDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, directory: directory}
}

// Handle enforces authentication for protected routes. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	participant, err := m.directory.FindByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("participant not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(PrincipalLocalsKey, &Principal{Participant: *participant})
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(PrincipalLocalsKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
