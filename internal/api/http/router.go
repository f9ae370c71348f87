package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(callController *CallController, allowedOrigins []string, metricsHandler http.Handler) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowOriginFunc = func(string) bool { return true }
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := router.Group("/api")

	if callController != nil {
		api.POST("/identity", callController.IssueIdentity)
		api.GET("/ice-servers", callController.ICEServers)
		api.GET("/stats", callController.Stats)
		api.GET("/ws", callController.WebSocket)
		api.GET("/events", callController.Events)
		api.POST("/signal", callController.Signal)

		clients := api.Group("/clients")
		clients.GET("/:clientID", callController.GetSession)
		clients.GET("/:clientID/matches", callController.ListMatches)

		api.GET("/matches/:matchID", callController.GetMatch)
	}

	return router
}
