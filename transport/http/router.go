package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tollgate/service"
	"go.uber.org/zap"
)

// RouterConfig holds what SetupRouter needs to wire the routes
type RouterConfig struct {
	AuthService    *service.AuthService
	StreamService  *service.StreamService
	Catalog        *service.Catalog
	Metrics        *Metrics
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		RequestLogger(cfg.Logger, cfg.Metrics),
		Recovery(cfg.Logger),
		CORSMiddleware(NewOriginPolicy(cfg.AllowedOrigins)),
	)

	handlers := NewHandlers(cfg.AuthService, cfg.StreamService, cfg.Catalog, cfg.Metrics, cfg.Logger)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	auth := router.Group("/auth")
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
	}

	router.GET("/stream/:id", handlers.Stream)
	router.GET("/tracks/:id", handlers.Track)

	return router
}
