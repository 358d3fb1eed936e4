package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"robolink/internal/authz"
	"robolink/internal/handlers"
	"robolink/internal/middleware"
	"robolink/internal/realtime"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	verifyHandler *handlers.VerifyHandler,
	reportHandler *handlers.ReportHandler,
	eventsHandler *handlers.EventsHandler,
	integrationsHandler *handlers.IntegrationsHandler, // Telegram-хендлер, может быть nil
	hub *realtime.EventHub,
) *gin.Engine {

	// ---- public
	r.POST("/login", authHandler.Login)
	r.POST("/refresh", authHandler.RefreshToken)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_subscribers": hub.Subscribers()})
	})

	// Telegram webhook публикуем только если есть интеграция
	if integrationsHandler != nil {
		r.POST("/integrations/telegram/webhook", integrationsHandler.Webhook)
	}

	// Дашборд подключается без JWT: браузерный WebSocket не умеет заголовки
	r.GET("/ws/events", eventsHandler.Stream)

	// ---- protected
	r.Use(middleware.AuthMiddleware())
	r.Use(middleware.ReadOnlyGuard())

	r.POST("/logout", authHandler.Logout)

	// VERIFY (operator/admin)
	verify := r.Group("/verify",
		middleware.RequireRoles(authz.RoleOperator, authz.RoleAdmin),
	)
	{
		verify.POST("/start", verifyHandler.Start)
		verify.POST("/complete", verifyHandler.Complete)
		verify.POST("/reverify", verifyHandler.Reverify)
		verify.POST("/cancel", verifyHandler.Cancel)
		verify.GET("/status/:user_id", verifyHandler.Status)
		verify.GET("/history/:user_id", verifyHandler.History)
	}

	// REPORTS (audit/operator/admin)
	reports := r.Group("/reports",
		middleware.RequireRoles(authz.RoleAudit, authz.RoleOperator, authz.RoleAdmin),
	)
	{
		reports.GET("/verifications/summary", reportHandler.GetSummary)
		reports.GET("/verifications/export", reportHandler.ExportPDF)
	}

	return r
}
