package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/felipemchdev/policyforge-core/model"
	"github.com/felipemchdev/policyforge-core/pkg/metrics"
	"github.com/felipemchdev/policyforge-core/ratelimit"
	"github.com/gin-gonic/gin"
)

// ClientIdentifier derives the rate-limit identity of a request: the first
// hop of X-Forwarded-For, then X-Real-IP, else a shared "anonymous" bucket
// for all unattributed clients.
func ClientIdentifier(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	return "anonymous"
}

// RateLimit admits or rejects requests against the shared limiter, keyed by
// scope and client identifier. Rejections carry the window metadata in
// x-ratelimit-remaining and x-ratelimit-reset headers.
func RateLimit(scope string, limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":" + ClientIdentifier(c)
		result := limiter.Check(key)

		if !result.Allowed {
			slog.Warn("rate limit exceeded",
				"scope", scope,
				"key", key,
				"request_id", GetRequestID(c),
			)
			metrics.RateLimitRejections.WithLabelValues(scope).Inc()

			c.Header("x-ratelimit-remaining", strconv.Itoa(result.Remaining))
			c.Header("x-ratelimit-reset", strconv.FormatInt(result.ResetAt.UnixMilli(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.GatewayError{
				Error: "Too many requests. Please wait and try again.",
				Code:  model.CodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
