package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/Simplici0/renoprice/internal/store"
)

type fakeKeys map[string]string

func (f fakeKeys) CountAPIKeys(context.Context) (int, error) {
	if _, ok := f["explode"]; ok {
		return 0, errors.New("database is locked")
	}
	return len(f), nil
}

func (f fakeKeys) LookupAPIKey(_ context.Context, key string) (string, error) {
	if key == "explode" {
		return "", errors.New("database is locked")
	}
	name, ok := f[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return name, nil
}

func TestLimiterStore_BurstThenRefill(t *testing.T) {
	clock := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l := newLimiterStore(rate.Limit(1), 2, time.Minute)
	l.now = func() time.Time { return clock }

	ok, _ := l.allow("a")
	assert.True(t, ok)
	ok, _ = l.allow("a")
	assert.True(t, ok)

	ok, retry := l.allow("a")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Second)

	ok, _ = l.allow("b")
	assert.True(t, ok, "limits are per client")

	clock = clock.Add(time.Second)
	ok, _ = l.allow("a")
	assert.True(t, ok)
}

func TestLimiterStore_ForgetsIdleClients(t *testing.T) {
	clock := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l := newLimiterStore(rate.Limit(1), 1, time.Minute)
	l.now = func() time.Time { return clock }

	l.allow("idle")
	l.allow("busy")
	require.Len(t, l.visitors, 2)

	clock = clock.Add(2 * time.Minute)
	l.allow("busy")
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "busy")
}

func TestAPIKeyAuth_Middleware(t *testing.T) {
	auth := newAPIKeyAuth(fakeKeys{"k1": "frontend"}, 1, 1)

	var seen string
	h := auth.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientName(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("nope").Code)
	assert.Equal(t, http.StatusInternalServerError, call("explode").Code)

	rec := call("k1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "frontend", seen)

	rec = call("k1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestWarnIfNoAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    fakeKeys
		level   zapcore.Level
		wantErr bool
	}{
		{name: "none stored", keys: fakeKeys{}, level: zapcore.WarnLevel},
		{name: "stored", keys: fakeKeys{"k1": "frontend"}, level: zapcore.InfoLevel},
		{name: "count fails", keys: fakeKeys{"explode": ""}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			err := warnIfNoAPIKeys(t.Context(), tc.keys, zap.New(core).Sugar())
			if tc.wantErr {
				assert.Error(t, err)
				assert.Zero(t, logs.Len())
				return
			}
			require.NoError(t, err)
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tc.level, logs.All()[0].Level)
		})
	}
}
