package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
)

// DefaultParamKey is the query parameter that identifies a lookup.
const DefaultParamKey = "location"

// Limit is a per-minute rate with its burst.
type Limit struct {
	PerMinute float64
	Burst     int
}

func (l Limit) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.PerMinute/60.0), l.Burst)
}

// visitor holds a limiter and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a global per-IP limit on searches and a tighter
// limit per IP and location, so one client cannot hammer the upstream API
// with the same lookup.
type RateLimiter struct {
	global   Limit
	param    Limit
	paramKey string
	now      func() time.Time

	mu      sync.Mutex
	globals map[string]*visitor            // ip
	params  map[string]map[string]*visitor // ip -> param value
}

func NewRateLimiter(global, param Limit) *RateLimiter {
	return &RateLimiter{
		global:   global,
		param:    param,
		paramKey: DefaultParamKey,
		now:      time.Now,
		globals:  make(map[string]*visitor),
		params:   make(map[string]map[string]*visitor),
	}
}

// NewRateLimiterFromConfig reads rate_limiter.global and rate_limiter.param.
func NewRateLimiterFromConfig() *RateLimiter {
	gRate, gBurst := config.GetGlobalRateLimiterConfig()
	pRate, pBurst := config.GetParamRateLimiterConfig()
	return NewRateLimiter(Limit{PerMinute: gRate, Burst: gBurst}, Limit{PerMinute: pRate, Burst: pBurst})
}

// SetParamKey sets the query parameter key for per-param rate limiting.
func (rl *RateLimiter) SetParamKey(key string) {
	rl.mu.Lock()
	rl.paramKey = key
	rl.mu.Unlock()
}

func (rl *RateLimiter) limiters(ip, param string) (global, perParam *rate.Limiter) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()

	g, ok := rl.globals[ip]
	if !ok {
		g = &visitor{limiter: rl.global.limiter()}
		rl.globals[ip] = g
	}
	g.lastSeen = now

	if _, ok := rl.params[ip]; !ok {
		rl.params[ip] = make(map[string]*visitor)
	}
	p, ok := rl.params[ip][param]
	if !ok {
		p = &visitor{limiter: rl.param.limiter()}
		rl.params[ip][param] = p
	}
	p.lastSeen = now

	return g.limiter, p.limiter
}

// Cleanup removes visitors idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, v := range rl.globals {
		if now.Sub(v.lastSeen) > maxIdle {
			delete(rl.globals, ip)
		}
	}
	for ip, paramMap := range rl.params {
		for param, v := range paramMap {
			if now.Sub(v.lastSeen) > maxIdle {
				delete(paramMap, param)
			}
		}
		if len(paramMap) == 0 {
			delete(rl.params, ip)
		}
	}
}

// StartCleanup runs Cleanup every minute until stop is closed.
func (rl *RateLimiter) StartCleanup(maxIdle time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup(maxIdle)
			case <-stop:
				return
			}
		}
	}()
}

// Reset clears all visitor state.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.globals = make(map[string]*visitor)
	rl.params = make(map[string]map[string]*visitor)
}

func (rl *RateLimiter) visitorCount() (globals, params int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for _, m := range rl.params {
		params += len(m)
	}
	return len(rl.globals), params
}

// getIP extracts the client's IP address from the HTTP request, considering X-Forwarded-For headers.
func getIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // fallback
	}
	return ip
}

// Handler returns middleware that responds 429 with a JSON envelope once
// either limit is exhausted.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.mu.Lock()
		key := rl.paramKey
		rl.mu.Unlock()

		ip := getIP(r)
		// FormValue matches how the search handler reads the location, so
		// query-string and form-body searches share buckets.
		param := r.FormValue(key)
		if param == "" {
			// If param is missing, treat as a single bucket
			param = "__none__"
		}
		globalLimiter, paramLimiter := rl.limiters(ip, param)

		if !globalLimiter.Allow() {
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per user/IP", rl.global.PerMinute),
				"Too Many Requests (global limit)")
			return
		}
		if !paramLimiter.Allow() {
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per unique %s per user/IP", rl.param.PerMinute, key),
				"Too Many Requests (per-param limit)")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeTooManyRequests(w http.ResponseWriter, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.NewErrorResponse(message, errMsg))
}
