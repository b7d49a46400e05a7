package router

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/adapter/api/middleware"
	"bizconnect/internal/infrastructure/metrics"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, m *metrics.Metrics) {
	SetupConversationRouter(e, authMiddleware)
	SetupBusinessRouter(e, authMiddleware)
	SetupAttachmentRouter(e, authMiddleware)
	SetupHealthRouter(e, m)
}
