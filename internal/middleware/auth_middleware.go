package middleware

import (
	"strings"

	"go-batch-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// SystemActor is recorded on writes made without a caller identity
const SystemActor = "system"

// Authenticate validates the bearer token issued by the identity service and
// stores the caller in context. Without a token the request runs as
// SystemActor unless required is set.
func Authenticate(secret []byte, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			if required {
				return c.Status(401).JSON(fiber.Map{"message": "Missing authorization token", "code": "UNAUTHORIZED"})
			}
			c.Locals("user_id", SystemActor)
			return c.Next()
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{
				"message": "Invalid authorization format. Use: Bearer <token>",
				"code":    "UNAUTHORIZED",
			})
		}

		claims, err := jwt.ValidateToken(parts[1], secret)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"message": "Invalid or expired token", "code": "UNAUTHORIZED"})
		}

		actor := claims.Email
		if actor == "" {
			actor = claims.UserID
		}
		c.Locals("user_id", actor)
		c.Locals("user_name", claims.Name)
		c.Locals("user_privileges", claims.Privileges)

		return c.Next()
	}
}

// RequirePrivilege checks the caller's token for the privilege. When
// enforce is false the check is skipped, for deployments running without
// an identity service.
func RequirePrivilege(requiredPrivilege string, enforce bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enforce {
			return c.Next()
		}

		privileges, ok := c.Locals("user_privileges").([]string)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"message": "No privileges found", "code": "FORBIDDEN"})
		}

		for _, p := range privileges {
			if p == requiredPrivilege {
				return c.Next()
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden: requires '" + requiredPrivilege + "' privilege",
			"code":    "FORBIDDEN",
		})
	}
}

// Actor returns the caller recorded by Authenticate
func Actor(c *fiber.Ctx) string {
	if actor, ok := c.Locals("user_id").(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
