package main

import (
	"database/sql"
	"net/http"
	"time"

	"voiceai-billing/internal/auth"
	"voiceai-billing/internal/httpapi"
	"voiceai-billing/internal/rbac"
	"voiceai-billing/internal/webhooks"
	"voiceai-billing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	DB    *sql.DB
	Redis *redis.Client

	Auth      *auth.Manager
	Telephony webhooks.TelephonyHandler
	Payments  *webhooks.PaymentHandler
	Handlers  httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public). The telephony endpoint authenticates via the
	// per-client token; the payment endpoint via payload signature.
	hooks := r.Group("/webhooks")
	hooks.Use(webhooks.RateLimit(deps.Redis, 120, time.Minute))
	{
		hooks.POST("/calls", deps.Telephony.Handle)
		hooks.POST("/payments", deps.Payments.Handle)
	}

	h := deps.Handlers

	// AUTH routes (token issuance).
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cid, _ := auth.ClientID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "client_id": cid, "role": role})
		})

		// Client self-service (requires a client-bound token).
		me := v1.Group("/my")
		me.Use(rbac.RequireClientAccount())
		{
			me.GET("/balance", h.GetMyBalance)
			me.GET("/transactions", h.ListMyTransactions)
			me.GET("/calls", h.ListMyCalls)
			me.GET("/usage", h.GetMyUsageSummary)
			me.GET("/notifications", h.ListMyNotifications)
			me.POST("/notifications/:id/read", h.MarkNotificationRead)
		}

		// ADMIN routes. Support staff can read; only admin mutates balances.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSupport))
		{
			admin.GET("/clients", h.AdminListClients)
			admin.GET("/clients/:id", h.AdminGetClient)
			admin.GET("/clients/:id/usage", h.AdminGetClientUsage)

			adjust := admin.Group("")
			adjust.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
			{
				adjust.POST("/clients/:id/adjust-balance", h.AdminAdjustBalance)
			}
		}
	}
}
