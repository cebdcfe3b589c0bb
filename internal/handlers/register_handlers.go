package handlers

import (
	"github.com/SscSPs/client_records_app/cmd/docs"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/SscSPs/client_records_app/internal/platform/config"
	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
)

// RouteDeps carries the optional infrastructure the routes are wrapped with.
type RouteDeps struct {
	Limiter *limiter.Limiter
	Posthog *utils.PosthogClientWrapper
	Ready   ReadinessCheck
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	deps RouteDeps,
) {
	r.GET("/health", getHealth)
	r.GET("/health/ready", newReadyHandler(deps.Ready))

	setupAPIV1Routes(r, cfg, services, deps)

	setupSwaggerRoutes(r, cfg)
}

// setupAPIV1Routes configures the /api/v1 group. Auth runs before the limiter so
// authenticated callers are limited per user.
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	deps RouteDeps,
) {
	v1 := r.Group("/api/v1",
		middleware.ServiceKeyAuth(cfg.ServiceAPIKeys),
		middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer),
	)
	if deps.Limiter != nil {
		v1.Use(middleware.RateLimit(deps.Limiter))
	}
	if deps.Posthog != nil {
		v1.Use(middleware.PosthogMiddleware(deps.Posthog))
	}

	RegisterRecordsRoutes(v1, services.Records,
		WithMaxBodyBytes(MaxBodyBytesForPayload(cfg.Records.MaxPayloadChars)))
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
