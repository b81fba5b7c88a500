package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/handler"
)

// Setup 配置 Gin 引擎和路由
func Setup(api *handler.API) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/items", api.ListItems)
		apiGroup.POST("/items", api.CreateItem)
		apiGroup.GET("/items/:id", api.GetItem)
		apiGroup.PUT("/items/:id", api.UpdateItem)
		apiGroup.DELETE("/items/:id", api.DeleteItem)

		apiGroup.POST("/items/:id/complete", api.CompleteItem)
		apiGroup.POST("/items/:id/uncomplete", api.UncompleteItem)
		apiGroup.POST("/items/:id/next-occurrence", api.CreateNextOccurrence)
		apiGroup.GET("/items/:id/calendar", api.GetItemCalendar)
		apiGroup.GET("/heatmap", api.GetHeatmap)

		apiGroup.POST("/items/:id/reconcile", api.ReconcileItem)
		apiGroup.POST("/reconcile", api.ReconcileAll)
	}

	return r
}
