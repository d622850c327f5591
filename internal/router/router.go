// Package router assembles the HTTP surface.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/wastewatch-api/api/swagger"
	"github.com/noah-isme/wastewatch-api/internal/handler"
	"github.com/noah-isme/wastewatch-api/internal/middleware"
	"github.com/noah-isme/wastewatch-api/internal/service"
	"github.com/noah-isme/wastewatch-api/pkg/config"
	"github.com/noah-isme/wastewatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/wastewatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/wastewatch-api/pkg/middleware/requestid"
)

// Handlers groups the endpoint handlers mounted by New.
type Handlers struct {
	Reports  *handler.ReportHandler
	Profiles *handler.ProfileHandler
	Storage  *handler.StorageHandler
	Metrics  *handler.MetricsHandler
}

// Deps carries the cross-cutting collaborators of the engine.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Identity *service.IdentityService
	Metrics  *service.MetricsService
}

// New builds the gin engine with middleware and routes.
func New(deps Deps, h Handlers) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Identity(deps.Identity))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/" + strings.Trim(deps.Config.APIPrefix, "/"))
	Register(api, h)
	return r
}

// Register mounts the API routes on group.
func Register(api *gin.RouterGroup, h Handlers) {
	reports := api.Group("/reports")
	reports.GET("", h.Reports.List)
	reports.POST("", h.Reports.Create)
	reports.GET("/export", h.Reports.Export)
	reports.GET("/:id", h.Reports.Get)
	reports.POST("/:id/comments", h.Reports.AddComment)
	reports.POST("/:id/clean", h.Reports.MarkAsCleaned)

	profiles := api.Group("/profiles")
	profiles.GET("/me", h.Profiles.Me)
	profiles.PUT("/me", h.Profiles.Update)

	api.GET("/leaderboard", h.Profiles.Leaderboard)

	storage := api.Group("/storage")
	storage.POST("/upload-url", h.Storage.UploadURL)
	storage.POST("/upload/:token", h.Storage.Upload)
	storage.GET("/files/:token", h.Storage.File)
}
