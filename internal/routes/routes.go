package routes

import (
	"database/sql"
	"net/http"
	"time"

	"salome-be/internal/handlers"
	"salome-be/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth               *handlers.AuthHandler
	App                *handlers.AppHandler
	Group              *handlers.GroupHandler
	Payment            *handlers.PaymentHandler
	Broadcast          *handlers.BroadcastHandler
	Notification       *handlers.NotificationHandler
	AccountCredentials *handlers.AccountCredentialsHandler
	Admin              *handlers.AdminHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, db *sql.DB, rdb *redis.Client, logger *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", middleware.AuthRequired(), h.Auth.Me)
	}

	apps := v1.Group("/apps")
	{
		apps.GET("", h.App.List)
		apps.GET("/categories", h.App.Categories)
		apps.GET("/:id", h.App.Get)
		apps.GET("/:id/price-preview", h.App.PricePreview)
	}

	groups := v1.Group("/groups")
	groups.Use(middleware.AuthRequired())
	{
		groups.POST("", h.Group.Create)
		groups.GET("", h.Group.ListMine)
		groups.GET("/public", h.Group.ListPublic)
		groups.POST("/join", middleware.RateLimit(rdb, logger, "join", 10, time.Minute), h.Group.Join)
		groups.GET("/:id", h.Group.Get)
		groups.GET("/:id/members", h.Group.Members)
		groups.PUT("/:id", h.Group.Update)
		groups.PUT("/:id/status", h.Group.UpdateStatus)
		groups.PUT("/:id/transfer-ownership", h.Group.TransferOwnership)
		groups.DELETE("/:id/leave", h.Group.Leave)
		groups.DELETE("/:id/members/:userId", h.Group.RemoveMember)
		groups.DELETE("/:id", h.Group.Delete)
		groups.GET("/:id/payments", h.Payment.ListGroupPayments)
	}

	payments := v1.Group("/payments")
	{
		// Gateway webhook, authenticated by payload signature rather than JWT.
		payments.POST("/notification", h.Payment.Notification)

		authed := payments.Group("")
		authed.Use(middleware.AuthRequired())
		{
			authed.GET("", h.Payment.ListMyPayments)
			authed.POST("/group-payment-link", middleware.RateLimit(rdb, logger, "payment-link", 5, time.Minute), h.Payment.CreateGroupPaymentLink)
			authed.POST("/:orderId/sync", h.Payment.Sync)
		}
	}

	notifications := v1.Group("/notifications")
	notifications.Use(middleware.AuthRequired())
	{
		notifications.GET("", h.Notification.List)
		notifications.PUT("/read", h.Notification.MarkAsRead)
		notifications.PUT("/read-all", h.Notification.MarkAllAsRead)
	}

	credentials := v1.Group("/account-credentials")
	credentials.Use(middleware.AuthRequired())
	{
		credentials.GET("", h.AccountCredentials.List)
		credentials.GET("/:appId", h.AccountCredentials.Get)
		credentials.PUT("", h.AccountCredentials.Upsert)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(db))
	{
		admin.POST("/apps", h.Admin.CreateApp)
		admin.PUT("/apps/:id", h.Admin.UpdateApp)
		admin.PUT("/apps/:id/active", h.Admin.SetAppActive)
		admin.DELETE("/apps/:id", h.Admin.DeleteApp)

		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id/status", h.Admin.SetUserAccountStatus)

		admin.GET("/groups", h.Admin.ListGroups)
		admin.PUT("/groups/status", h.Admin.SetGroupStatus)
		admin.PUT("/groups/members/status", h.Admin.SetMemberStatus)
		admin.POST("/groups/:id/members", h.Admin.AddMember)
		admin.GET("/groups/:id/credentials", h.AccountCredentials.ListForGroup)

		admin.GET("/payments/mismatched", h.Admin.MismatchedPayments)

		admin.POST("/broadcasts", h.Broadcast.Create)
		admin.GET("/broadcasts", h.Broadcast.List)
		admin.GET("/broadcasts/:id", h.Broadcast.Get)
		admin.PUT("/broadcasts/:id", h.Broadcast.Update)
		admin.POST("/broadcasts/:id/send", h.Broadcast.Send)
		admin.POST("/broadcasts/:id/cancel", h.Broadcast.Cancel)
		admin.DELETE("/broadcasts/:id", h.Broadcast.Delete)
	}
}
