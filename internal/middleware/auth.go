package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errNotAdmin           = errors.New("token does not carry an admin role")
)

// AdminClaims is the subset of a Supabase access token the admin check reads
type AdminClaims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

// IsAdmin reports whether the token belongs to the service role or an admin user
func (c *AdminClaims) IsAdmin() bool {
	return c.Role == "service_role" || c.AppMetadata.Role == "admin"
}

// AuthConfig defines the config for the admin auth middleware
type AuthConfig struct {
	// Next skips the middleware when it returns true
	Next func(c *fiber.Ctx) bool

	// APIKey is compared with the X-API-Key header or a bearer token
	APIKey string

	// JWTSecret verifies HS256 Supabase access tokens. Empty disables JWT auth.
	JWTSecret string

	// ErrorHandler defines a function which is executed for rejected requests.
	// Optional. Default: 401 with a JSON error body
	ErrorHandler fiber.ErrorHandler

	// ContextKey is the key used to store the caller identity in the context.
	// Optional. Default: "admin"
	ContextKey string
}

// ConfigDefault is the default config
var ConfigDefault = AuthConfig{
	ErrorHandler: func(c *fiber.Ctx, err error) error {
		logger.Get().Warn().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Err(err).
			Msg("Authentication failed")

		status := fiber.StatusUnauthorized
		if errors.Is(err, errNotAdmin) {
			status = fiber.StatusForbidden
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "Admin access required",
		})
	},
	ContextKey: "admin",
}

// NewAuth accepts either the admin API key or a Supabase JWT with an admin role
func NewAuth(config AuthConfig) fiber.Handler {
	cfg := config
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = ConfigDefault.ErrorHandler
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = ConfigDefault.ContextKey
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		apiKey := c.Get("X-API-Key")
		bearer := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))

		if cfg.APIKey != "" {
			for _, candidate := range []string{apiKey, bearer} {
				if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(cfg.APIKey)) == 1 {
					c.Locals(cfg.ContextKey, "api-key")
					return c.Next()
				}
			}
		}

		if bearer == "" || cfg.JWTSecret == "" {
			if apiKey != "" || bearer != "" {
				return cfg.ErrorHandler(c, errors.New("invalid API key"))
			}
			return cfg.ErrorHandler(c, errMissingCredentials)
		}

		claims, err := ParseAdminToken(cfg.JWTSecret, bearer)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		if !claims.IsAdmin() {
			return cfg.ErrorHandler(c, errNotAdmin)
		}

		c.Locals(cfg.ContextKey, claims.Subject)
		return c.Next()
	}
}

// ParseAdminToken verifies an HS256 token and returns its claims
func ParseAdminToken(secret, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}
	return claims, nil
}
