package webhooks

import (
	"net/http"
	"time"

	"voiceai-billing/pkg/logger"
	"voiceai-billing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps webhook deliveries per source IP over a fixed window. The
// counter lives in Redis so every API replica shares the budget. Redis being
// down fails open: dropping legitimate billing events costs more than
// letting a burst through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "webhook_rate:" + c.ClientIP()
		ok, err := utils.AllowRate(c.Request.Context(), rdb, key, limit, window)
		if err != nil {
			logger.FromGin(c).Warn("webhook rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
