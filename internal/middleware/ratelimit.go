package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const HeaderExecutorAddress = "X-Executor-Address"

// ExecutorRateLimiter 按触发者地址限流，防止单个 bot 刷爆引擎。
// 授权本身不受影响：限流只是外层流量治理。
type ExecutorRateLimiter struct {
	mu       sync.Mutex
	limiters map[common.Address]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func NewExecutorRateLimiter(qps float64, burst int) *ExecutorRateLimiter {
	limit := rate.Limit(qps)
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ExecutorRateLimiter{
		limiters: make(map[common.Address]*rate.Limiter),
		qps:      limit,
		burst:    burst,
	}
}

func (l *ExecutorRateLimiter) limiterFor(executor common.Address) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[executor]
	if !ok {
		lim = rate.NewLimiter(l.qps, l.burst)
		l.limiters[executor] = lim
	}
	return lim
}

// ExecutorMiddleware 解析并校验触发者地址，然后应用其限流桶
func ExecutorMiddleware(rl *ExecutorRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderExecutorAddress))
		if !common.IsHexAddress(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or malformed " + HeaderExecutorAddress})
			c.Abort()
			return
		}
		executor := common.HexToAddress(raw)

		if !rl.limiterFor(executor).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Set(ContextCallerKey, executor)
		c.Next()
	}
}
