package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"NewsDigest/internal/infrastructure/session"
)

const sessionKey = "session"

// requireSession resolves the bearer token and stores the session on the context.
func requireSession(store session.Store, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token required")
			}

			sess, err := store.Lookup(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					return mapError(err)
				}
				logger.Error("session lookup failed", "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}

			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func currentSession(c echo.Context) session.Session {
	sess, _ := c.Get(sessionKey).(session.Session)
	return sess
}

// submitLimiter throttles digest submissions per session token. Limiters live
// in a bounded LRU, so idle sessions age out without a cleanup loop.
type submitLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newSubmitLimiter(r rate.Limit, burst, capacity int) *submitLimiter {
	if burst < 1 {
		burst = 1
	}
	if capacity < 1 {
		capacity = 1024
	}
	cache, _ := lru.New[string, *rate.Limiter](capacity)
	return &submitLimiter{limiters: cache, rate: r, burst: burst}
}

func (l *submitLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters.Add(key, limiter)
	return limiter
}

// Middleware must run after requireSession.
func (l *submitLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.rate <= 0 {
				return next(c)
			}
			if !l.get(currentSession(c).Token).Allow() {
				retryAfter := max(int(1.0/float64(l.rate)), 1)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many digest requests")
			}
			return next(c)
		}
	}
}
