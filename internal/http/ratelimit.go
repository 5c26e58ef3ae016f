package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/projectd/pkg/auth"
)

// RateLimitConfig configures per-caller request limiting.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// rateLimiter hands out one token bucket per caller.
type rateLimiter struct {
	cfg    RateLimitConfig
	logger *zap.Logger

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func newRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *rateLimiter {
	return &rateLimiter{
		cfg:         cfg,
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// limiter returns the bucket for key.
func (l *rateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop idle buckets hourly so the map stays bounded.
	if time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
		l.limiters[key] = lim
	}
	return lim
}

// middleware limits by authenticated caller, falling back to the client IP.
// It must run after the auth middleware.
func (l *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := auth.UserID(c)
			if !ok {
				key = "ip:" + c.RealIP()
			}
			if !l.limiter(key).Allow() {
				l.logger.Warn("rate limit exceeded", zap.String("key", key))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
