package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pharmacy-service/internal/service"
	"pharmacy-service/internal/util"
)

const sessionKey = "session"

// IdentityMiddleware resolves the forwarded user id into a session.
// Authentication itself happens upstream; this service trusts the
// X-User-Id header set by the gateway.
func IdentityMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-Id header"})
			return
		}

		sess, err := auth.ResolveSession(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) service.Session {
	return c.MustGet(sessionKey).(service.Session)
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
