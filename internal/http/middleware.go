package http

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// TokenVerifier checks a presented bearer token.
type TokenVerifier interface {
	Verify(token string) error
}

// verifiedTokenTTL bounds how long a token that passed the (slow) hash check
// is accepted from memory.
const verifiedTokenTTL = 5 * time.Minute

// RequireToken rejects requests without a bearer token accepted by verifier.
func RequireToken(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	verified := gocache.New(verifiedTokenTTL, 2*verifiedTokenTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "AUTH_REQUIRED", errMissingToken)
				return
			}

			digest := sha256.Sum256([]byte(token))
			key := hex.EncodeToString(digest[:])
			if _, ok := verified.Get(key); !ok {
				if err := verifier.Verify(token); err != nil {
					responder.loggerFor(r.Context()).WarnContext(r.Context(), "rejected API token", "error", err)
					responder.writeError(r.Context(), w, http.StatusUnauthorized, "AUTH_INVALID", errInvalidToken)
					return
				}
				verified.SetDefault(key, struct{}{})
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// RequestLogger attaches a request scoped logger to the context and logs the
// start and completion of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// idleLimiterTTL is how long a client's bucket survives without requests.
// An evicted bucket is recreated full, which an idle client would have
// refilled to anyway.
const idleLimiterTTL = 10 * time.Minute

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	limit    rate.Limit
	burst    int
}

func newClientLimiter(limit rate.Limit, burst int, idle time.Duration) *clientLimiter {
	return &clientLimiter{limiters: gocache.New(idle, idle), limit: limit, burst: burst}
}

func (c *clientLimiter) get(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	var limiter *rate.Limiter
	if cached, ok := c.limiters.Get(client); ok {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(c.limit, c.burst)
	}
	// Re-setting slides the expiry so only idle clients are evicted.
	c.limiters.SetDefault(client, limiter)
	return limiter
}

func (c *clientLimiter) tracked() int {
	return c.limiters.ItemCount()
}

// RateLimit answers 429 once a client exceeds limit requests per second with
// the given burst. A non-positive limit disables limiting. Clients are keyed
// by the connection's remote address; forwarding headers are ignored.
func RateLimit(limit float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	responder := newResponder(logger)
	limiters := newClientLimiter(rate.Limit(limit), burst, idleLimiterTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(clientAddress(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMITED", errTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
