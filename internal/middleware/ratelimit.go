package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DefaultSaveBurst é a rajada permitida por usuário
const DefaultSaveBurst = 10

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter aplica um token bucket por usuário
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter cria um limitador com perMinute requisições por minuto.
// perMinute <= 0 desativa o limite.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = DefaultSaveBurst
	}
	return &UserRateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow consome um token do usuário
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = time.Now()
	l.mu.Unlock()

	return ul.limiter.Allow()
}

// Cleanup remove limitadores sem uso há mais de idle
func (l *UserRateLimiter) Cleanup(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	removed := 0

	l.mu.Lock()
	for userID, ul := range l.limiters {
		if ul.lastSeen.Before(cutoff) {
			delete(l.limiters, userID)
			removed++
		}
	}
	l.mu.Unlock()

	return removed
}

// Middleware rejeita com 429 quando o usuário excede o limite.
// Deve rodar depois do middleware de identidade.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if l.Allow(userID) {
			c.Next()
			return
		}

		metrics.Get().IncrementRateLimited()
		logger.FromGin(c).Warn().Str("user_id", userID).Msg("Limite de gravações excedido")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "muitas requisições, tente novamente em instantes",
			"code":    "RATE_LIMITED",
		})
	}
}
