package router

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/adapter/api/handler"
	"bizconnect/internal/adapter/api/middleware"
)

func SetupAttachmentRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	attachmentHandler := handler.GetAttachmentHandler()

	attachments := e.Group("/v1/attachments")
	attachments.Use(authMiddleware.Authenticate)

	attachments.POST("", attachmentHandler.Upload)
}
