package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes. Extra middleware applies to the v1 group only.
func SetupRoutes(router *gin.Engine, handler Handler, v1Middleware ...gin.HandlerFunc) {
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1", v1Middleware...)
	{
		v1.GET("/entities/:kind/:id", handler.GetEntity)
		v1.POST("/entities/:kind/:id/refresh", handler.RefreshEntity)

		v1.POST("/entities/refresh", handler.RefreshEntities)
		v1.POST("/entities/reduce", handler.TriggerReduction)
	}
}
