package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

// TokenValidator resolves a bearer token to the signed-in wallet
type TokenValidator interface {
	ValidateToken(token string) (*utils.AuthenticatedUser, error)
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	Validator TokenValidator
	// Optional lets requests without a token through; a present but invalid token is still rejected
	Optional bool
}

// AuthMiddleware returns a Fiber middleware for Bearer token authentication
func AuthMiddleware(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Extract Bearer token from Authorization header
		authHeader := c.Get("Authorization")
		var token string

		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		if token == "" {
			if cfg.Optional {
				return c.Next()
			}
			c.Set("WWW-Authenticate", `Bearer realm="pool"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid Bearer token",
			})
		}

		user, err := cfg.Validator.ValidateToken(token)
		if err != nil {
			c.Set("WWW-Authenticate", `Bearer realm="pool", error="invalid_token"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		// Store authenticated user in context
		c.Locals("user", user)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin. It must run after AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetAuthenticatedUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid Bearer token",
			})
		}
		if !user.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		}
		return c.Next()
	}
}

// GetAuthenticatedUser retrieves the authenticated user from Fiber context
// Returns nil if no user is found or if user is not of correct type
func GetAuthenticatedUser(c *fiber.Ctx) *utils.AuthenticatedUser {
	userInterface := c.Locals("user")
	if userInterface == nil {
		return nil
	}

	user, ok := userInterface.(*utils.AuthenticatedUser)
	if !ok {
		return nil
	}

	return user
}
