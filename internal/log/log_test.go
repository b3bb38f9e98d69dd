package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud")
	assert.Error(t, err)
}

func TestRequests_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := Requests(zap.New(core))

	tests := []struct {
		path   string
		status int
		level  zapcore.Level
	}{
		{path: "/estimate", status: http.StatusOK, level: zapcore.InfoLevel},
		{path: "/health", status: http.StatusOK, level: zapcore.DebugLevel},
		{path: "/estimate", status: http.StatusBadRequest, level: zapcore.WarnLevel},
		{path: "/quotes", status: http.StatusInternalServerError, level: zapcore.ErrorLevel},
	}
	for _, tc := range tests {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, tc.level, entries[0].Level, tc.path)
		assert.Equal(t, int64(tc.status), entries[0].ContextMap()["status"])
	}
}
