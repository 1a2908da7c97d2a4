package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smart-street-backend/internal/metrics"
	"smart-street-backend/internal/mw"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	// AuthSecret validates session tokens issued by the identity service.
	AuthSecret  string
	RateLimiter *mw.IPRateLimiter
	CacheTTL    time.Duration
	Metrics     *metrics.Metrics
	// Ping checks the database for /healthz. Nil reports healthy.
	Ping func(ctx context.Context) error
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		if opts.Ping != nil {
			if err := opts.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// Admin listings are cached until the next successful decision.
	cacheStore := mw.NewResponseCache(opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	if opts.RateLimiter != nil {
		api.Use(mw.RateLimiter(opts.RateLimiter))
	}
	{
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
		api.GET("/permits/verify", h.VerifyPermit)

		user := api.Group("", mw.Authenticate(opts.AuthSecret))
		user.GET("/subscriptions", h.GetSubscription)
		user.PUT("/subscriptions", h.PutSubscription)
		user.DELETE("/subscriptions", h.DeleteSubscription)
		user.GET("/notifications", h.ListNotifications)
		user.POST("/notifications/:id/read", h.MarkNotificationRead)

		admin := api.Group("/admin", mw.Authenticate(opts.AuthSecret), mw.RequireRole(mw.RoleAdmin), mw.FlushOnWrite(cacheStore))
		admin.GET("/requests", caching, h.ListRequests)
		admin.POST("/requests/:id/approve", h.ApproveRequest)
		admin.POST("/requests/:id/reject", h.RejectRequest)
		admin.GET("/permits", caching, h.ListPermits)
		admin.GET("/audit-logs", h.ListAuditLogs)
	}

	return r
}
