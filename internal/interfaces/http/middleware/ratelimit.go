package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

// RateLimiter enforces a fixed-window request budget per key.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string]*windowState
}

type windowState struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimiter returns a limiter allowing limit requests per window for
// each key. A background sweep evicts idle keys.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string]*windowState),
	}
	go rl.sweep()
	return rl
}

// Allow consumes one request from the key's budget and reports whether it
// fit inside the current window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	state, ok := rl.seen[key]
	if !ok || !now.Before(state.resetAt) {
		rl.seen[key] = &windowState{remaining: rl.limit - 1, resetAt: now.Add(rl.window)}
		return true
	}
	if state.remaining > 0 {
		state.remaining--
		return true
	}
	return false
}

// Remaining reports how many requests the key has left in its window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.seen[key]
	if !ok || !time.Now().Before(state.resetAt) {
		return rl.limit
	}
	return state.remaining
}

// sweep drops windows that expired more than one window ago.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-rl.window)
		rl.mu.Lock()
		for key, state := range rl.seen {
			if state.resetAt.Before(cutoff) {
				delete(rl.seen, key)
			}
		}
		rl.mu.Unlock()
	}
}

// limiterKey scopes the budget to the authenticated user when present and
// falls back to the client IP.
func limiterKey(c *gin.Context, prefix string) string {
	if userID := GetJWTUserID(c); userID != "" {
		return prefix + userID
	}
	return prefix + c.ClientIP()
}

// RateLimit throttles all requests against a shared per-caller budget.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limiterKey(c, "")
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests, try again later"))
			return
		}

		setBudgetHeaders(c, limiter, key)
		c.Next()
	}
}

// PushRateLimit throttles tracker push endpoints. A push fans out into many
// external tracker calls, so it runs on a tighter budget than the global
// limiter and answers with a retry hint when blocked.
func PushRateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The prefix keeps the push budget separate from the global one
		key := limiterKey(c, "push:")
		if !limiter.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodePushRateLimited, "Too many push attempts, try again later"))
			return
		}

		setBudgetHeaders(c, limiter, key)
		c.Next()
	}
}

func setBudgetHeaders(c *gin.Context, limiter *RateLimiter, key string) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
}
