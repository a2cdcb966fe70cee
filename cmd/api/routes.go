package main

import (
	"net/http"
	"time"

	"barberline/internal/httpapi"
	"barberline/internal/oauth"
	"barberline/internal/ratelimit"
	"barberline/internal/vapi"
	"barberline/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type routeDeps struct {
	db         *sqlx.DB
	limiter    *ratelimit.Limiter
	session    gin.HandlerFunc
	vapiSecret string
	metrics    http.Handler

	vapi      vapi.Handlers
	webhook   vapi.Webhook
	dashboard httpapi.Handlers

	// oauth is nil when Square app credentials are not configured.
	oauth *oauth.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.metrics != nil {
		r.GET("/metrics", gin.WrapH(d.metrics))
	}

	// The browser-callable SMS relay was an open relay and is gone.
	r.Any("/api/twilio/send", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "This endpoint has been removed"})
	})

	// Voice platform server URLs: shared secret first, then per-route limits.
	v := r.Group("/api/vapi")
	v.Use(vapi.RequireSecret(d.vapiSecret))
	{
		limit := func(p ratelimit.Policy) gin.HandlerFunc {
			return ratelimit.Middleware(d.limiter, p, ratelimit.ClientIP)
		}
		v.POST("/availability", limit(ratelimit.PolicyAvailability), d.vapi.Availability)
		v.POST("/book", limit(ratelimit.PolicyBooking), d.vapi.Book)
		v.POST("/info", limit(ratelimit.PolicyInfo), d.vapi.Info)
		v.POST("/message", limit(ratelimit.PolicyMessage), d.vapi.Message)
		v.POST("/webhook", limit(ratelimit.PolicyWebhook), d.webhook.Handle)
	}

	// Dashboard (session auth, scoped to the caller's shop).
	if d.session != nil {
		dash := r.Group("/api/dashboard")
		dash.Use(d.session, d.dashboard.RequireShop())
		{
			dash.GET("/shop", d.dashboard.GetShop)
			dash.GET("/calls", d.dashboard.ListCalls)
			dash.GET("/analytics", d.dashboard.Analytics)
			dash.GET("/settings", d.dashboard.GetSettings)
			dash.PUT("/settings", d.dashboard.UpdateSettings)
			dash.POST("/onboarding/activate", d.dashboard.Activate)
		}
	}

	// Dashboard account linking (session auth).
	if d.oauth != nil {
		o := r.Group("/oauth")
		o.Use(d.session)
		{
			o.GET("/start", ratelimit.Middleware(d.limiter, ratelimit.PolicyOAuthStart, ratelimit.UserKey), d.oauth.Start)
			o.GET("/callback", d.oauth.Callback)
		}
	}
}
