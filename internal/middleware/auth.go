// Package middleware provides HTTP middleware for the fiber app: tenant
// API-key authentication and optional user-token claims extraction.
package middleware

import (
	"strings"

	"payvault/internal/config"
	"payvault/internal/models"
	"payvault/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Context locals keys
const (
	LocalTenant = "tenant"
	LocalUserID = "user_id"
)

// UserClaims are the accepted bearer-token claims for user-scoped calls.
type UserClaims struct {
	UserID   uint `json:"user_id"`
	TenantID uint `json:"tenant_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates tenants by API key and, when present,
// extracts user claims from a bearer token.
type AuthMiddleware struct {
	tenants repositories.TenantRepository
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(tenants repositories.TenantRepository) *AuthMiddleware {
	return &AuthMiddleware{tenants: tenants}
}

// RequireTenant validates the X-API-Key header. Keys look like
// pv_<prefix>_<secret>; the prefix locates the tenant and bcrypt verifies
// the whole key against the stored hash.
func (m *AuthMiddleware) RequireTenant(c *fiber.Ctx) error {
	apiKey := c.Get("X-API-Key")
	if apiKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api key"})
	}

	prefix := APIKeyPrefix(apiKey)
	if prefix == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
	}

	tenant, err := m.tenants.GetByAPIKeyPrefix(c.Context(), prefix)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
	}

	if bcrypt.CompareHashAndPassword([]byte(tenant.APIKeyHash), []byte(apiKey)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
	}

	c.Locals(LocalTenant, tenant)

	if userID, ok := m.userFromBearer(c, tenant); ok {
		c.Locals(LocalUserID, userID)
	}
	return c.Next()
}

func (m *AuthMiddleware) userFromBearer(c *fiber.Ctx, tenant *models.Tenant) (uint, bool) {
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return 0, false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(config.GetEnv("JWT_SECRET", "")), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || claims.TenantID != tenant.ID {
		return 0, false
	}
	return claims.UserID, true
}

// APIKeyPrefix extracts the lookup prefix from a full key, "" when the key
// is malformed.
func APIKeyPrefix(apiKey string) string {
	parts := strings.SplitN(apiKey, "_", 3)
	if len(parts) != 3 || parts[0] != "pv" || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// TenantFromContext returns the authenticated tenant set by RequireTenant.
func TenantFromContext(c *fiber.Ctx) *models.Tenant {
	tenant, _ := c.Locals(LocalTenant).(*models.Tenant)
	return tenant
}

// UserIDFromContext returns the bearer-token user id, 0 when absent.
func UserIDFromContext(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}
