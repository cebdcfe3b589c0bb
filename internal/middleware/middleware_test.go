package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-of-decent-length"
	testIssuer = "client-records-app"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.RegisteredClaims, method jwt.SigningMethod, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    testIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

// newProtectedRouter echoes the acting user id.
func newProtectedRouter(serviceKeys map[string]string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(slog.Default()))
	r.Use(middleware.ServiceKeyAuth(serviceKeys))
	r.Use(middleware.AuthMiddleware(testSecret, testIssuer))
	r.GET("/me", func(c *gin.Context) {
		userID, _ := middleware.GetUserIDFromContext(c)
		ctxUserID, _ := middleware.GetUserIDFromCtx(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": userID, "ctxUser": ctxUserID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	noSubject := validClaims()
	noSubject.Subject = ""
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid token", header: "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusOK, wantUser: "user-42"},
		{name: "lowercase scheme", header: "bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusOK, wantUser: "user-42"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, "another-secret-entirely"), wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, expired, jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + signToken(t, wrongIssuer, jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, noSubject, jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + signToken(t, noExpiry, jwt.SigningMethodHS256, testSecret), wantStatus: http.StatusUnauthorized},
	}

	router := newProtectedRouter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantUser, body["user"])
				assert.Equal(t, tt.wantUser, body["ctxUser"])
			}
		})
	}
}

func TestServiceKeyAuth(t *testing.T) {
	keys := map[string]string{"telegram_bot": utils.HashServiceKey("0123456789abcdef0123")}
	router := newProtectedRouter(keys)

	t.Run("valid key skips JWT", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-API-Key", "0123456789abcdef0123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "service:telegram_bot")
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-API-Key", "not-the-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "auth_invalid_api_key")
	})

	t.Run("no key falls through to JWT", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "auth_required")
	})

	t.Run("configured hash is not accepted as a key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-API-Key", keys["telegram_bot"])
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestStructuredLoggingMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetRequestIDFromCtx(c.Request.Context()))
	})

	t.Run("reuses incoming id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-123", w.Body.String())
		assert.Contains(t, buf.String(), `"request_id":"req-123"`)
		assert.Contains(t, buf.String(), "Request completed")
	})

	t.Run("generates id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
	})
}

func TestGetLoggerFromCtx_FallsBackToDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, slog.Default(), middleware.GetLoggerFromCtx(req.Context()))
}

func TestRateLimit(t *testing.T) {
	lim, err := middleware.NewLimiter("2-M")
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.RateLimit(lim))
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if i == 0 {
			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// a different client has its own budget
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNewLimiter_InvalidRate(t *testing.T) {
	_, err := middleware.NewLimiter("lots")
	assert.Error(t, err)
}
