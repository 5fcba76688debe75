package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 滑动窗口限流规则
type RateLimitRule struct {
	Name          string
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

// 有序集合保存窗口内每次请求的毫秒时间戳
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	local wait = window
	if oldest[2] then
		wait = tonumber(oldest[2]) + window - now
	end
	return {count, wait}
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return {count + 1, 0}
`)

// RateLimitMiddleware Redis 滑动窗口限流中间件；超限时直接拒绝，不排队
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		windowMs := int64(rule.WindowSeconds) * 1000
		now := time.Now().UnixMilli()
		result, err := slidingWindowScript.Run(c.Request.Context(), client, []string{key},
			now, windowMs, rule.MaxRequests, fmt.Sprintf("%d-%s", now, uuid.NewString()),
		).Int64Slice()
		if err != nil || len(result) < 2 {
			logger.Errorw("rate_limit_unavailable", "rule", rule.Name, "error", err)
			response.Error(c, response.CodeInternal, "rate limit unavailable")
			c.Abort()
			return
		}

		if waitMs := result[1]; waitMs > 0 || result[0] > int64(rule.MaxRequests) {
			waitSeconds := int((waitMs + 999) / 1000)
			if waitSeconds < 1 {
				waitSeconds = 1
			}
			metrics.RateLimitedTotal.WithLabelValues(rule.Name).Inc()
			logger.Warnw("rate_limit_exceeded", "rule", rule.Name, "key", key, "wait_seconds", waitSeconds)
			c.Header("Retry-After", fmt.Sprintf("%d", waitSeconds))
			response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("too many requests, retry in %d seconds", waitSeconds))
			c.Abort()
			return
		}

		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}
