package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"barberline/internal/metrics"
	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const TooManyRequestsMessage = "Too many requests. Please try again later."

// KeyFunc returns the coarse client identifier for a request.
type KeyFunc func(c *gin.Context) string

// ClientIP keys on gin's resolved client address. Forwarded headers count only
// when the peer is a trusted proxy (Engine.SetTrustedProxies); the result is
// the last hop no trusted proxy vouches for, so callers cannot pick their own.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// UserKey keys on the authenticated user id set by auth.RequireSession.
func UserKey(c *gin.Context) string {
	if v := c.GetString("user_id"); v != "" {
		return "user:" + v
	}
	return ClientIP(c)
}

// Middleware rejects requests over the policy with 429 before the handler runs.
func Middleware(l *Limiter, p Policy, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	return func(c *gin.Context) {
		res := l.Check(p.Namespace+":"+key(c), p.Limit, p.Window)

		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			retry := int(res.ResetAt.Sub(l.now()).Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			metrics.RateLimitDenied(p.Namespace)
			logger.FromGin(c).Warn("rate limited", "namespace", p.Namespace)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": TooManyRequestsMessage})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
