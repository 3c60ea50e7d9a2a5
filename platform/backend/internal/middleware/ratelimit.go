package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientIDKey is the gin context key the auth middleware stores the caller under
const ClientIDKey = "client_id"

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig suits the capture client's observe cadence
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10.0,
	BurstSize:         20,
	CleanupInterval:   5 * time.Minute,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client token buckets
type RateLimiter struct {
	limiters    map[string]*clientLimiter
	mu          sync.Mutex
	config      RateLimiterConfig
	now         func() time.Time
	log         *zap.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a rate limiter with background cleanup
func NewRateLimiter(config RateLimiterConfig, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	rl := &RateLimiter{
		limiters:    make(map[string]*clientLimiter),
		config:      config,
		now:         time.Now,
		log:         log.With(zap.String("component", "ratelimit")),
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given client ID should be allowed
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.AllowN(clientID, 1)
}

// AllowN checks if n requests from the given client ID should be allowed
func (rl *RateLimiter) AllowN(clientID string, n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limiter, exists := rl.limiters[clientID]
	if !exists {
		limiter = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[clientID] = limiter
	}
	limiter.lastSeen = now

	return limiter.limiter.AllowN(now, n)
}

// GetLimiterCount returns the number of tracked clients
func (rl *RateLimiter) GetLimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops limiters idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.CleanupInterval)
	removed := 0

	for clientID, limiter := range rl.limiters {
		if limiter.lastSeen.Before(cutoff) {
			delete(rl.limiters, clientID)
			removed++
		}
	}

	if removed > 0 {
		rl.log.Debug("Cleaned up inactive rate limiters", zap.Int("removed", removed))
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// GinMiddleware limits by authenticated client id, falling back to the remote IP
func (rl *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString(ClientIDKey)
		if clientID == "" {
			clientID = c.ClientIP()
		}

		if !rl.Allow(clientID) {
			rl.log.Info("Rate limit exceeded", zap.String("client", clientID), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please slow down."})
			return
		}

		c.Next()
	}
}

// WebSocketLimiter bounds how often one client may open analysis subscriptions
type WebSocketLimiter struct {
	*RateLimiter
}

func NewWebSocketLimiter(log *zap.Logger) *WebSocketLimiter {
	config := RateLimiterConfig{
		RequestsPerSecond: 1.0,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}

	return &WebSocketLimiter{RateLimiter: NewRateLimiter(config, log)}
}

// AllowSubscribe checks if a new subscription from a client should be allowed
func (wl *WebSocketLimiter) AllowSubscribe(clientID string) bool {
	allowed := wl.Allow(clientID)
	if !allowed {
		wl.log.Info("Subscription rate limit exceeded", zap.String("client", clientID))
	}
	return allowed
}
