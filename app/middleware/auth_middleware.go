// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/dto"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/services"
	"github.com/gofiber/fiber/v3"
)

// DefaultAPIKeyHeader is the header carrying the client credential
const DefaultAPIKeyHeader = "X-API-Key"

// AuthMiddleware resolves API keys to user identities for protected endpoints
type AuthMiddleware struct {
	keyService services.APIKeyService
	headerName string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(keyService services.APIKeyService, headerName string) *AuthMiddleware {
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}
	return &AuthMiddleware{
		keyService: keyService,
		headerName: headerName,
	}
}

// Authenticate is the middleware function that validates API keys
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		rawKey := c.Get(m.headerName)
		if rawKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		userID, err := m.keyService.Authenticate(context.Background(), rawKey)
		if err != nil {
			code := "API_KEY_VALIDATION_FAILED"
			message := "API key validation failed"
			if errors.Is(err, services.ErrAPIKeyInvalid) || errors.Is(err, services.ErrAPIKeyMissing) {
				code = "INVALID_API_KEY"
				message = "Invalid API key"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: message,
				Error: dto.ErrorDetail{
					Code: code,
				},
			})
		}

		// Store user identity in context for downstream handlers
		c.Locals("user_id", userID)

		// Store RequestID for audit logging
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// GetUserIDFromContext extracts the authenticated user id from the request context
func GetUserIDFromContext(c fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}
