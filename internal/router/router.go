// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/config"
	"github.com/devmarket/devmarket-backend/internal/handlers"
	"github.com/devmarket/devmarket-backend/internal/middleware"
	"github.com/devmarket/devmarket-backend/internal/payments"
	"github.com/devmarket/devmarket-backend/internal/realtime"
	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, hub *realtime.Hub, gateway payments.Gateway) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, hub)
	certificateService := services.NewCertificateService(db)

	authService := services.NewAuthService(db, cfg)
	projectService := services.NewProjectService(db)
	requestService := services.NewRequestService(db, cfg, gateway, notificationService)
	transferService := services.NewTransferService(db, notificationService)
	webhookService := services.NewWebhookService(db, cfg, gateway, certificateService, notificationService)
	messageService := services.NewMessageService(db, hub, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectService)
	requestHandler := handlers.NewRequestHandler(requestService)
	transferHandler := handlers.NewTransferHandler(transferService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	certificateHandler := handlers.NewCertificateHandler(certificateService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	messageHandler := handlers.NewMessageHandler(messageService)
	realtimeHandler := handlers.NewRealtimeHandler(hub, messageService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Realtime gateway (token auth happens in the handler)
	r.GET("/ws", realtimeHandler.Serve)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Project routes
		projects := v1.Group("/projects")
		{
			projects.GET("", middleware.OptionalAuth(), projectHandler.GetProjects)
			projects.GET("/:id", middleware.OptionalAuth(), projectHandler.GetProject)

			protected := projects.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", projectHandler.CreateProject)
				protected.PUT("/:id", projectHandler.UpdateProject)
				protected.POST("/:id/interest", requestHandler.ExpressInterest)
				protected.POST("/:id/buy-now", requestHandler.BuyNow)
			}
		}

		// Purchase request workflow routes
		requests := v1.Group("/requests")
		requests.Use(middleware.AuthRequired())
		{
			requests.GET("", requestHandler.GetRequests)
			requests.GET("/:id", requestHandler.GetRequest)
			requests.POST("/:id/propose-terms", requestHandler.ProposeTerms)
			requests.POST("/:id/accept-terms", requestHandler.AcceptTerms)
			requests.POST("/:id/withdraw", requestHandler.WithdrawInterest)
			requests.POST("/:id/decline", requestHandler.DeclineInterest)
			requests.POST("/:id/checkout", requestHandler.InitiateCheckout)
			requests.PUT("/:id/transfer-status", transferHandler.UpdateTransferStatus)
			requests.POST("/:id/confirm-receipt", transferHandler.ConfirmReceipt)

			// Per-request conversation
			requests.POST("/:id/messages", messageHandler.SendMessage)
			requests.GET("/:id/messages", messageHandler.GetMessages)
			requests.PUT("/:id/messages/read", messageHandler.MarkConversationRead)
			requests.POST("/:id/typing", messageHandler.PublishTyping)
		}

		// Transaction ledger
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.GET("", webhookHandler.GetTransactions)
		}

		// Certificate verification (public)
		certificates := v1.Group("/certificates")
		{
			certificates.GET("/verify/:code", certificateHandler.VerifyCertificate)
		}

		// Notification routes
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.GET("/unread-count", notificationHandler.GetUnreadCount)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}

		// Payment provider webhooks (signature verification in the handler)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payment", webhookHandler.HandlePaymentWebhook)
		}
	}

	return r
}
