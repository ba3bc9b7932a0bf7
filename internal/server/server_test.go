package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_ReportsEachDependency(t *testing.T) {
	tests := []struct {
		name     string
		redisErr error
		wantCode int
		want     map[string]interface{}
	}{
		{
			name:     "all healthy",
			wantCode: http.StatusOK,
			want:     map[string]interface{}{"status": "healthy", "database": "connected", "redis": "connected"},
		},
		{
			name:     "redis down",
			redisErr: errors.New("connection refused"),
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]interface{}{"status": "unhealthy", "database": "connected", "redis": "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", "release",
				WithHealthCheck("database", PingFunc(func(context.Context) error { return nil })),
				WithHealthCheck("redis", PingFunc(func(context.Context) error { return tt.redisErr })),
			)

			resp := httptest.NewRecorder()
			s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.wantCode, resp.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "vellum_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(":0", "release", WithMetrics(reg))
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "vellum_test_total 1")
}

func TestMaxBodySize(t *testing.T) {
	s := New(":0", "release", WithMaxBodySize(1))
	s.Engine.POST("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 2*1024*1024)))
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
	resp = httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", "release")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
