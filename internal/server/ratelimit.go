package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/logging"
)

// Each document request embeds a whole upload and runs one or two
// generations, so the per-IP budget is small.
const (
	defaultRateLimit = 2
	defaultRateBurst = 5

	// visitorTTL is how long an idle IP keeps its bucket.
	visitorTTL = 5 * time.Minute
	// sweepEvery is the interval of the idle-bucket sweep.
	sweepEvery = time.Minute
)

// visitor is the token bucket of one client IP.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token bucket on the document endpoints.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	log      *slog.Logger
	now      func() time.Time
}

// newRateLimiter constructs a rateLimiter and starts the idle-bucket sweep.
// The returned function stops the sweep.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
		now:      time.Now,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// bucket returns the limiter for ip, creating it on first use.
func (rl *rateLimiter) bucket(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	return v.bucket
}

// sweep drops buckets idle for longer than visitorTTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-visitorTTL)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// middleware rejects requests over budget with 429 and a Retry-After header
// rounded up to whole seconds. The reservation is cancelled so a rejected
// request does not consume a future token.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		res := rl.bucket(ip).Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Duration("retry_after", delay),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			errWriter.WriteError(w, r, httpError(http.StatusTooManyRequests, apperr.KindInvalidRequest, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored
// so clients cannot pick their own bucket.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
