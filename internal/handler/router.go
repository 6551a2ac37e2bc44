package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semdex/semdex/internal/middleware"
)

type RouterDeps struct {
	Search *SearchHandler
	Index  *IndexHandler
	Files  *FileHandler
	// IndexRateLimit throttles index triggers per client; zero disables it.
	IndexRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/search", deps.Search.Search)
	api.GET("/snippet", deps.Search.Snippet)

	indexGroup := api.Group("")
	indexGroup.Use(middleware.RateLimit(deps.IndexRateLimit))
	indexGroup.POST("/index", deps.Index.Start)

	api.GET("/index/:id", deps.Index.Status)
	api.DELETE("/index/:id", deps.Index.Cancel)

	api.GET("/files/*key", deps.Files.Get)
}
