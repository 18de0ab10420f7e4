package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"go.uber.org/zap"
)

// CheckoutRateLimit applies the per-client token bucket to checkout
// submissions. A limiter outage fails closed with 503.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("checkout rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			logger.FromContext(ctx).Info("checkout request rate limited",
				zap.String("route", c.FullPath()),
				zap.String("client_ip", c.ClientIP()),
			)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}
