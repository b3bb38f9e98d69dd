package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Simplici0/renoprice/internal/store"
)

const (
	apiKeyHeader     = "X-API-Key"
	limiterExpiresIn = 3 * time.Minute
)

type clientKey struct{}

// clientName returns the API key name attached by the auth middleware.
func clientName(ctx context.Context) string {
	name, _ := ctx.Value(clientKey{}).(string)
	return name
}

type keyLookup interface {
	LookupAPIKey(ctx context.Context, key string) (string, error)
}

type keyCounter interface {
	CountAPIKeys(ctx context.Context) (int, error)
}

// warnIfNoAPIKeys logs a warning when the database holds no active key.
func warnIfNoAPIKeys(ctx context.Context, keys keyCounter, logger *zap.SugaredLogger) error {
	n, err := keys.CountAPIKeys(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Warn("no active API keys are stored; set RENO_API_KEYS or run `renoctl seed`")
		return nil
	}
	logger.Infow("api keys loaded", "active", n)
	return nil
}

// apiKeyAuth accepts requests carrying a registered X-API-Key and rate limits each key.
// Keys are looked up by their sha256 digest, so the plaintext never reaches the database.
type apiKeyAuth struct {
	keys     keyLookup
	limiters *limiterStore
}

func newAPIKeyAuth(keys keyLookup, rps float64, burst int) *apiKeyAuth {
	return &apiKeyAuth{
		keys:     keys,
		limiters: newLimiterStore(rate.Limit(rps), burst, limiterExpiresIn),
	}
}

func (a *apiKeyAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			respondError(w, r, http.StatusUnauthorized, "missing "+apiKeyHeader+" header")
			return
		}

		name, err := a.keys.LookupAPIKey(r.Context(), key)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusUnauthorized, "invalid API key")
			return
		}
		if err != nil {
			zap.S().Named("auth").Errorw("api key lookup failed", "error", err)
			respondError(w, r, http.StatusInternalServerError, "failed to verify API key")
			return
		}

		if ok, retryAfter := a.limiters.allow(name); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			respondError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, name)))
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per client and forgets clients idle for expiresIn.
type limiterStore struct {
	mu          sync.Mutex
	rate        rate.Limit
	burst       int
	expiresIn   time.Duration
	visitors    map[string]*visitor
	lastCleanup time.Time
	now         func() time.Time
}

func newLimiterStore(r rate.Limit, burst int, expiresIn time.Duration) *limiterStore {
	return &limiterStore{
		rate:      r,
		burst:     burst,
		expiresIn: expiresIn,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

// allow reports whether id may proceed now and, if not, how long until a token is free.
func (l *limiterStore) allow(id string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.expiresIn {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.expiresIn {
				delete(l.visitors, k)
			}
		}
		l.lastCleanup = now
	}

	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[id] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.expiresIn
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}
