package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"telbill/internal/config"
	apperrors "telbill/pkg/errors"
	"telbill/pkg/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig reads the api.rate_limit section; intervals there are in seconds.
func FromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	c := DefaultConfig()
	if cfg.RPS > 0 {
		c.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		c.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		c.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return c
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func NewLimiter(cfg RateLimitConfig) *Limiter {
	return &Limiter{cfg: cfg, limiters: make(map[string]*clientLimiter)}
}

// Run evicts idle clients until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cl := range l.limiters {
		if now.Sub(cl.lastSeen) > l.cfg.MaxAge {
			delete(l.limiters, ip)
		}
	}
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(l.cfg.RPS))

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := l.get(clientIP)
		c.Header("X-RateLimit-Limit", limit)

		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.ToErrorResponse(apperrors.ErrTooManyRequests))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
