package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	minVisitorIdle = time.Minute
	maxVisitorIdle = time.Hour
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors keeps one token bucket per client IP. Buckets idle long enough to
// have refilled are dropped, so forgetting them changes nothing.
type visitors struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	seen      map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newVisitors(r rate.Limit, b int) *visitors {
	idle := maxVisitorIdle
	if r > 0 && r != rate.Inf {
		if secs := float64(b) / float64(r); secs < idle.Seconds() {
			idle = time.Duration(secs * float64(time.Second))
		}
	}
	if idle < minVisitorIdle {
		idle = minVisitorIdle
	}
	return &visitors{
		limit: r,
		burst: b,
		idle:  idle,
		seen:  make(map[string]*visitor),
		now:   time.Now,
	}
}

func (v *visitors) get(ip string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastSweep) >= v.idle {
		for key, vis := range v.seen {
			if now.Sub(vis.lastSeen) >= v.idle {
				delete(v.seen, key)
			}
		}
		v.lastSweep = now
	}

	vis, ok := v.seen[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.seen[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// rateLimiter throttles each client IP with its own token bucket. The IP comes
// from c.ClientIP, which only honours forwarding headers from trusted proxies.
func (s *Server) rateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	v := newVisitors(r, b)

	return func(c *gin.Context) {
		if !v.get(c.ClientIP()).Allow() {
			rateLimited.WithLabelValues(c.FullPath()).Inc()
			c.HTML(http.StatusTooManyRequests, "error.html", s.page(c, "Slow down", gin.H{
				"Status":  http.StatusTooManyRequests,
				"Message": "Too many attempts. Please wait a moment and try again.",
			}))
			c.Abort()
			return
		}
		c.Next()
	}
}
