package router

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/adapter/api/handler"
	"bizconnect/internal/adapter/api/middleware"
)

func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	conversationHandler := handler.GetConversationHandler()

	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.POST("", conversationHandler.StartConversation)
	conversations.GET("", conversationHandler.GetConversations)
	conversations.DELETE("/:id", conversationHandler.DeleteConversation)

	conversations.GET("/:id/messages", conversationHandler.GetMessages)
	conversations.POST("/:id/messages", conversationHandler.SendMessage)
	conversations.PUT("/:id/read", conversationHandler.MarkAsRead)

	conversations.PUT("/:id/archive", conversationHandler.Archive)
	conversations.DELETE("/:id/archive", conversationHandler.Unarchive)
}

// SetupBusinessRouter mounts the business inbox. Callers must hold a business role.
func SetupBusinessRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	conversationHandler := handler.GetConversationHandler()

	business := e.Group("/v1/business")
	business.Use(authMiddleware.Authenticate)
	business.Use(middleware.BusinessOnly)

	business.GET("/conversations", conversationHandler.GetBusinessConversations)
	business.PUT("/conversations/:id/read", conversationHandler.MarkBusinessAsRead)
}
