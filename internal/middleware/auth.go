package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authMethodKey       = "authMethod"
	authMethodJWT       = "jwt"
	authMethodService   = "service_key"
	serviceKeyHeader    = "X-API-Key"
	serviceKeyPrincipal = "service:"
)

// ServiceKeyAuth authenticates trusted integrations (the Telegram bot, intake workers) by a
// static key in the X-API-Key header. keyHashes maps an integration name to the hex SHA-256
// of its key. Requests without the header fall through to AuthMiddleware.
func ServiceKeyAuth(keyHashes map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(serviceKeyHeader)
		if presented == "" || len(keyHashes) == 0 {
			c.Next()
			return
		}

		logger := GetLoggerFromCtx(c.Request.Context())
		for name, hash := range keyHashes {
			if utils.CompareServiceKeyHash(presented, hash) {
				setPrincipal(c, serviceKeyPrincipal+name, authMethodService, logger)
				c.Next()
				return
			}
		}

		logger.Warn("Invalid service key")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key", "code": "auth_invalid_api_key"})
	}
}

// AuthMiddleware creates a Gin middleware handler that validates JWT tokens.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())
		// if auth is already done, skip this middleware
		if authMethod, exists := c.Get(authMethodKey); exists {
			logger.Debug("Auth already done", slog.Any("authMethod", authMethod))
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": "auth_required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logger.Warn("Authorization header format invalid")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "code": "auth_invalid_token"})
			return
		}

		claims, err := utils.ParseAndValidateJWT(parts[1], jwtSecret, issuer)
		if err != nil {
			logger.Warn("Invalid token", slog.String("error", err.Error()))
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			} else if errors.Is(err, jwt.ErrTokenNotValidYet) {
				msg = "Token not valid yet"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "auth_invalid_token"})
			return
		}

		if claims.Subject == "" {
			logger.Error("User ID (subject) missing from valid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims", "code": "auth_invalid_token"})
			return
		}

		setPrincipal(c, claims.Subject, authMethodJWT, logger)
		c.Next()
	}
}

// setPrincipal stores the acting user in both the gin and request contexts and
// enriches the request logger with it.
func setPrincipal(c *gin.Context, userID, method string, logger *slog.Logger) {
	c.Set(string(userIDKey), userID)
	c.Set(authMethodKey, method)

	ctx := context.WithValue(c.Request.Context(), userIDKey, userID)
	ctx = WithLogger(ctx, logger.With(slog.String("user_id", userID)))
	c.Request = c.Request.WithContext(ctx)
}
