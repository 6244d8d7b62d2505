package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confmeal/backend/pkg/redis"
	"github.com/confmeal/backend/pkg/response"
)

// RateLimit returns a per-IP rate limiting middleware backed by Redis.
// Degrades open when rdb is nil or Redis errors, so the checkpoint keeps
// working through a cache outage.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, response.Body{
				Success:   false,
				ErrorCode: "RATE_LIMIT",
				Message:   "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
