package main

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tecchey18-jpg/downloading-website/internal/config"
	"github.com/tecchey18-jpg/downloading-website/internal/middleware"
)

func setupRouter(api *API, logger zerolog.Logger, rlCfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(rlCfg.RPS, rlCfg.Burst)))

	group := router.Group("/api")
	{
		group.POST("/resolve", api.resolve)
		group.GET("/deliver", api.deliver)
		group.POST("/deliver", api.deliver)
		group.POST("/deliver/batch", api.deliverBatch)
		group.GET("/health", api.health)
	}

	return router
}
