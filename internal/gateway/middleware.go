// HTTP middleware for security, logging, and rate limiting.
//
// DESIGN: Middleware chain (applied in order):
//  1. panicRecovery:     Catch panics, return 500, log stack trace
//  2. rateLimit:         Per-IP token bucket; /health is exempt so editor
//     integrations can poll it freely
//  3. loggingMiddleware: Request ID, request/response logs, metrics, alerts
//  4. security:          Security headers, CORS for local tools
package gateway

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/compresr/squeeze/internal/monitoring"
)

const (
	healthPath = "/health"
	streamPath = "/v1/stream"

	bucketIdleTTL   = 10 * time.Minute
	bucketSweepTick = 5 * time.Minute
)

// responseWriter records the status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets websocket upgrades pass through the logging wrapper.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// =============================================================================
// RATE LIMITING
// =============================================================================

// rateLimiter is a per-IP token bucket. Each bucket holds up to rate tokens
// and refills continuously at rate tokens per second.
type rateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64
	maxBuckets int
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newRateLimiter(rate int) *rateLimiter {
	if rate <= 0 {
		rate = DefaultRateLimit
	}
	rl := &rateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       float64(rate),
		maxBuckets: MaxRateLimitBuckets,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// allow takes one token from ip's bucket.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		if len(rl.buckets) >= rl.maxBuckets {
			rl.evictIdlest()
		}
		rl.buckets[ip] = &bucket{tokens: rl.rate - 1, seen: now}
		return true
	}

	b.tokens = min(rl.rate, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdlest drops the bucket seen longest ago. Caller holds mu.
func (rl *rateLimiter) evictIdlest() {
	var (
		victim string
		oldest time.Time
	)
	for ip, b := range rl.buckets {
		if victim == "" || b.seen.Before(oldest) {
			victim, oldest = ip, b.seen
		}
	}
	delete(rl.buckets, victim)
}

// sweep removes buckets idle since before cutoff and returns how many remain.
func (rl *rateLimiter) sweep(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
	return len(rl.buckets)
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(bucketSweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(rl.now().Add(-bucketIdleTTL))
		}
	}
}

func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// loggingMiddleware assigns the request ID and records every request.
func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)
		r = r.WithContext(monitoring.WithRequestIDContext(r.Context(), requestID))

		g.requestLogger.LogIncoming(monitoring.NewRequestInfo(r, requestID, max(int(r.ContentLength), 0)))

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		latency := time.Since(start)

		g.requestLogger.LogResponse(&monitoring.ResponseInfo{
			RequestID:  requestID,
			StatusCode: wrapped.status,
			Latency:    latency,
		})
		g.metrics.RecordRequest(wrapped.status < 400, latency)

		// A websocket request lasts as long as the connection.
		if r.URL.Path != streamPath {
			g.alerts.FlagHighLatency(requestID, latency, r.URL.Path)
		}

		event := log.Info()
		if r.URL.Path == healthPath {
			event = log.Debug()
		}
		event.
			Str("id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Int("bytes", wrapped.written).
			Dur("duration", latency).
			Msg("request")
	})
}

// panicRecovery turns a handler panic into a 500 and an alert.
func (g *Gateway) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				stack := string(debug.Stack())
				g.alerts.FlagPanic(monitoring.RequestIDFromContext(r.Context()), v, stack)
				g.writeError(w, "internal error", ErrTypeInternal, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit enforces the per-IP limit on everything except /health.
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if !g.rateLimiter.allow(ip) {
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			g.writeError(w, "rate limit exceeded", ErrTypeRateLimit, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// security adds security headers and answers CORS preflights.
func (g *Gateway) security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'")

		if origin := r.Header.Get("Origin"); origin != "" && isAllowedOrigin(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderRequestID)
			h.Set("Access-Control-Expose-Headers", HeaderRequestID)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin accepts local pages and editor webviews.
func isAllowedOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "vscode-webview://"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// clientIP returns the caller's address. Forwarding headers are honoured
// only when the direct peer is loopback (a local reverse proxy).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !peer.IsLoopback() {
		return host
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return host
}
