package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"Qurbani-app-backend/models"
)

// Claims structure for JWT
type Claims struct {
	Sub  int64           `json:"sub"` // admins.id, supervisors.id or users.id depending on Role
	Role models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// JwtGuard is a middleware to validate JWT access tokens.
func JwtGuard(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusInternalServerError, "JWT_SECRET not configured")
		}
	}

	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing or malformed bearer token")
		}
		tkn, err := ParseAccessToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token: "+err.Error())
		}
		c.Locals("claims", tkn)
		return c.Next()
	}
}

// ParseAccessToken verifies an HS256 token and returns its claims.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	tkn, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	cls, ok := tkn.Claims.(*Claims)
	if !ok || !tkn.Valid {
		return nil, errors.New("token is not valid")
	}
	if !cls.Role.Valid() {
		return nil, errors.New("unknown role")
	}
	return cls, nil
}

// RequireRole is a middleware to check if the authenticated account has one of the allowed roles.
func RequireRole(roles ...models.UserRole) fiber.Handler {
	allowed := map[models.UserRole]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		cls, ok := c.Locals("claims").(*Claims)
		if !ok || cls == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		if _, ok := allowed[cls.Role]; !ok {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient role privileges")
		}
		return c.Next()
	}
}

// BuildAccessToken Helper to build JWT access tokens.
func BuildAccessToken(secret string, sub int64, role models.UserRole, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET is not set")
	}

	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GetUserIDFromClaims extracts the account ID from the JWT claims in the Fiber context.
func GetUserIDFromClaims(c *fiber.Ctx) (int64, error) {
	cls, ok := c.Locals("claims").(*Claims)
	if !ok || cls == nil {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "user claims not found")
	}
	return cls.Sub, nil
}

// GetUserRoleFromClaims extracts the account role from the JWT claims in the Fiber context.
func GetUserRoleFromClaims(c *fiber.Ctx) (models.UserRole, error) {
	cls, ok := c.Locals("claims").(*Claims)
	if !ok || cls == nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "user claims not found")
	}
	return cls.Role, nil
}
