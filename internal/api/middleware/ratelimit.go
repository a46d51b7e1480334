package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit defines limits for one route.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist []string // IPs or CIDRs exempt from rate limiting
}

// RateLimiter implements fixed-window per-IP rate limiting backed by
// Redis, so limits hold across replicas sharing the same Redis.
type RateLimiter struct {
	client       *redis.Client
	limits       map[string]RateLimit
	logger       zerolog.Logger
	whitelist    []*net.IPNet
	whitelistIPs map[string]bool
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:       client,
		logger:       logger,
		whitelistIPs: make(map[string]bool),
		limits: map[string]RateLimit{
			"GET /api/chat":                 {120, time.Minute},
			"POST /api/chat":                {30, time.Minute},
			"DELETE /api/chat":              {30, time.Minute},
			"GET /api/notifications":        {120, time.Minute},
			"POST /api/notifications":       {60, time.Minute},
			"PATCH /api/notifications":      {60, time.Minute},
			"DELETE /api/notifications":     {60, time.Minute},
			"GET /api/notifications/stream": {10, time.Minute},
			"GET /api/socket":               {30, time.Minute},
		},
	}

	// Parse whitelist entries
	for _, entry := range cfg.Whitelist {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			rl.whitelist = append(rl.whitelist, ipNet)
			continue
		}
		if net.ParseIP(entry) != nil {
			rl.whitelistIPs[entry] = true
			continue
		}
		logger.Warn().Str("entry", entry).Msg("invalid rate limit whitelist entry")
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

// isWhitelisted checks if an IP is in the whitelist.
func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP extracts the client address. chi's RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr by the time we run.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the per-route limits. Routes without a configured
// limit pass through. Redis failures fail open: availability over strict
// enforcement.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, ok := rl.limits[r.Method+" "+r.URL.Path]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		key := "ratelimit:" + ip + ":" + r.Method + ":" + r.URL.Path

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, limit.Window)
		}

		remaining := int64(limit.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit.Requests) {
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
