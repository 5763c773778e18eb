package relay

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/zoobzio/clockz"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate            float64                      // requests per second
	Burst           int                          // max burst
	KeyFunc         func(r *http.Request) string // default: remote IP
	CleanupInterval time.Duration                // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                // remove limiters idle longer than this (default: 5m)
	Clock           clockz.Clock                 // default: clockz.RealClock
	MetricSink      metrics.MetricSink           // default: metrics.Default()
}

// RateLimit returns middleware that applies per-key token bucket limiting.
// Rejected requests are answered with a bare 429 and a Retry-After header.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteHost
	}
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}
	tel := newTelemetry(cfg.MetricSink, nil, false)
	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / cfg.Rate)))
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		lastCleanup time.Time
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			now := cfg.Clock.Now()

			mu.Lock()
			if now.Sub(lastCleanup) >= cfg.CleanupInterval {
				for k, e := range limiters {
					if now.Sub(e.lastSeen) > cfg.MaxIdle {
						delete(limiters, k)
					}
				}
				lastCleanup = now
			}

			entry, ok := limiters[key]
			if !ok {
				entry = &limiterEntry{
					limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
				}
				limiters[key] = entry
			}
			entry.lastSeen = now
			allowed := entry.limiter.AllowN(now, 1)
			mu.Unlock()

			if !allowed {
				tel.rateLimited(key)
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
