package v1

import (
	"dbwarden/internal/api/v1/checks"
	"dbwarden/internal/api/v1/evaluate"
	"dbwarden/internal/api/v1/thresholds"
	checktable "dbwarden/internal/checks"
	"dbwarden/internal/core"
	"dbwarden/internal/storage"

	"github.com/gin-gonic/gin"
)

// Dependencies are the components behind the v1 endpoints.
type Dependencies struct {
	Store    *storage.ThresholdStore
	Engine   *core.Engine
	Registry *checktable.Registry
	MaxBatch int
}

// SetupRoutes configures API routes.
func SetupRoutes(routerGroup *gin.RouterGroup, deps Dependencies) {
	// Initialize handlers
	checksHandler := checks.NewHandler(deps.Registry)
	thresholdsHandler := thresholds.NewHandler(deps.Store, deps.Engine.Resolver(), deps.Registry)
	evaluateHandler := evaluate.NewHandler(deps.Engine, deps.MaxBatch)

	// Check table
	checksGroup := routerGroup.Group("/checks")
	{
		checksGroup.GET("", checksHandler.List)
		checksGroup.GET("/:reference", checksHandler.Get)
	}

	// Threshold configuration
	thresholdsGroup := routerGroup.Group("/thresholds")
	{
		thresholdsGroup.GET("", thresholdsHandler.ListAll)
		thresholdsGroup.GET("/:reference", thresholdsHandler.List)
		thresholdsGroup.PUT("/:reference", thresholdsHandler.Put)
		thresholdsGroup.GET("/:reference/scope", thresholdsHandler.Get)
		thresholdsGroup.DELETE("/:reference/scope", thresholdsHandler.Delete)
	}

	// Live evaluation
	routerGroup.POST("/evaluate", evaluateHandler.Evaluate)
}
