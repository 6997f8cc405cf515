package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/calmora/voice-backend/internal/handlers"
	"github.com/calmora/voice-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName      string
	AlexaHandler     *handlers.AlexaHandler
	AssistantHandler *handlers.AssistantHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// The platform simulators run in the browser during development.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Budget-Millis"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	webhook := router.Group("/webhook")
	{
		webhook.POST("/alexa", cfg.AlexaHandler.Handle)
		webhook.POST("/assistant", cfg.AssistantHandler.Handle)
	}

	return router
}
