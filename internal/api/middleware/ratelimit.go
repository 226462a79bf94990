package middleware

import (
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// clientLimiters token bucket на каждый адрес клиента
type clientLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func (c *clientLimiters) get(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.clients[addr]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.clients[addr] = l
	}
	return l
}

// RateLimit ограничивает частоту запросов с одного адреса, rps <= 0 отключает ограничение.
// Адрес берется из RemoteAddr, поэтому за прокси RateLimit ставится после chimiddleware.RealIP.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiters := &clientLimiters{rps: rate.Limit(rps), burst: burst, clients: make(map[string]*rate.Limiter)}

	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiters.get(clientAddr(r)).Allow() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]interface{}{
				"error":   "rate_limited",
				"code":    http.StatusTooManyRequests,
				"message": "Слишком много запросов",
			})
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
