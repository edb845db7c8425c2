package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter ограничивает запросы на пользователя (или ip) в минуту.
// С redis счетчик общий для всех инстансов, без него - локальный token bucket
type RateLimiter struct {
	redis    *redis.Client
	perMin   int
	mu       sync.Mutex
	local    map[string]*rate.Limiter
	lastSeen map[string]time.Time
	// последняя чистка локальных ключей
	lastSweep time.Time
	now       func() time.Time
}

const (
	idleKeyTTL         = 10 * time.Minute
	localSweepInterval = time.Minute
)

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		redis:    client,
		perMin:   perMinute,
		local:    make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow - можно ли пропустить еще один запрос по ключу
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l.redis != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
		logger.WithContext(ctx).Warn("rate limiter: redis недоступен, локальный лимит", "error", err)
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	k := "rl:" + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.perMin), nil
}

func (l *RateLimiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	lim, ok := l.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMin)/60), l.perMin)
		l.local[key] = lim
	}
	l.lastSeen[key] = now

	if now.Sub(l.lastSweep) >= localSweepInterval {
		l.sweepLocked(now)
	}
	return lim.AllowN(now, 1)
}

// sweepLocked убирает давно молчащие ключи, не чаще раза в localSweepInterval
func (l *RateLimiter) sweepLocked(now time.Time) {
	l.lastSweep = now
	for k, seen := range l.lastSeen {
		if now.Sub(seen) > idleKeyTTL {
			delete(l.local, k)
			delete(l.lastSeen, k)
		}
	}
}

// Middleware - ключ это user id после Auth, иначе ip
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid, ok := GetUserID(c); ok {
			key = "u:" + strconv.FormatInt(uid, 10)
		}
		if !l.Allow(c.Request.Context(), key) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
