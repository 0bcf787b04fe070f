package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL 客户端限流器闲置多久后回收
const limiterIdleTTL = 10 * time.Minute

// SubmitLimiter 按客户端IP限制评分提交频率
type SubmitLimiter struct {
	limiters  sync.Map
	rate      rate.Limit
	burst     int
	lastPrune time.Time
	mu        sync.Mutex
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// NewSubmitLimiter 创建提交限流器，perSecond<=0时不限流
func NewSubmitLimiter(perSecond float64, burst int) *SubmitLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &SubmitLimiter{
		rate:      limit,
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// Allow 客户端当前是否允许提交
func (l *SubmitLimiter) Allow(key string) bool {
	l.prune()

	now := time.Now()
	val, _ := l.limiters.LoadOrStore(key, &limiterEntry{
		limiter:    rate.NewLimiter(l.rate, l.burst),
		lastAccess: now,
	})
	entry := val.(*limiterEntry)

	entry.mu.Lock()
	entry.lastAccess = now
	entry.mu.Unlock()

	return entry.limiter.Allow()
}

// prune 回收闲置的限流器，最多每个TTL周期执行一次
func (l *SubmitLimiter) prune() {
	l.mu.Lock()
	if time.Since(l.lastPrune) < limiterIdleTTL {
		l.mu.Unlock()
		return
	}
	l.lastPrune = time.Now()
	l.mu.Unlock()

	cutoff := time.Now().Add(-limiterIdleTTL)
	l.limiters.Range(func(key, value interface{}) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		idle := entry.lastAccess.Before(cutoff)
		entry.mu.Unlock()
		if idle {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Middleware gin中间件
func (l *SubmitLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "提交过于频繁，请稍后再试",
			})
			return
		}
		c.Next()
	}
}
