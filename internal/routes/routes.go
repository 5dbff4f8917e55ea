package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	identity middleware.IdentityConfig,
	taskHandler *handlers.TaskHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", healthHandler.Check)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ---- identified
	r.Use(middleware.Identity(identity))

	r.GET("/ws", wsHandler.Serve)

	api := r.Group("/api", middleware.WritesNeedIdentity())

	// TASKS
	tasks := api.Group("/tasks")
	{
		tasks.POST("", taskHandler.Create)
		tasks.GET("/project/:projectId", taskHandler.ListByProject)
		tasks.GET("/user/:userId", taskHandler.ListByOwner)
		tasks.GET("/:taskId", taskHandler.GetByID)
		tasks.PUT("/:taskId", taskHandler.Update)
		tasks.DELETE("/:taskId", taskHandler.Delete)
		tasks.POST("/:taskId/status", taskHandler.ChangeStatus)
	}

	// PROJECTS
	projects := api.Group("/projects")
	{
		projects.GET("/:projectId/progress", taskHandler.Progress)
	}

	return r
}
