package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per client IP.
// A nil *LoginLimiter lets everything through.
type LoginLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perMinute attempts per client with a burst of a tenth
// of that (at least one). perMinute <= 0 disables throttling.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &LoginLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   max(1, perMinute/10),
		idle:    10 * time.Minute,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

func (l *LoginLimiter) Handler() gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		now := l.now()
		res := l.limiterFor(c.ClientIP(), now).ReserveN(now, 1)
		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			secs := 60
			if res.OK() {
				secs = max(1, int(math.Ceil(delay.Seconds())))
			}
			logger.FromGin(c).Info("login throttled", "client_ip", c.ClientIP())
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
			return
		}
		c.Next()
	}
}

func (l *LoginLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.clients[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	for k, e := range l.clients {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.clients, k)
		}
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &client{limiter: lim, lastSeen: now}
	return lim
}
