package middleware

import (
	"net/http"
	"strings"

	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/gin-gonic/gin"
)

// pathsToSkip contains paths that should not be tracked by PostHog
var pathsToSkip = map[string]bool{
	"/health": true,
}

// PosthogMiddleware tracks successful API calls made by authenticated callers.
func PosthogMiddleware(posthogClient *utils.PosthogClientWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !posthogClient.IsInitialized() || pathsToSkip[c.Request.URL.Path] {
			c.Next()
			return
		}

		c.Next()

		if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		userID, exists := GetUserIDFromContext(c)
		if !exists {
			return
		}

		// "/api/v1/records" -> "api_v1_records_put"
		route := strings.ReplaceAll(strings.TrimPrefix(c.FullPath(), "/"), "/", "_")
		if route == "" {
			return
		}
		eventName := route + "_" + strings.ToLower(c.Request.Method)

		props := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
		}
		if source := c.Writer.Header().Get("X-Records-Source"); source != "" {
			props["records_source"] = source
		}
		if method, ok := c.Get(authMethodKey); ok {
			props["auth_method"] = method
		}

		posthogClient.Enqueue(userID, eventName, props)
	}
}
