package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("test")

	st := c.Check(context.Background())
	assert.True(t, st.Healthy)
	assert.Equal(t, "No health checks registered", st.Message)

	c.AddCheck("postgres", NewPingCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddCheck("redis", NewPingCheck(pingFunc(func(context.Context) error { return errors.New("refused") })))

	st = c.Check(context.Background())
	assert.False(t, st.Healthy)
	assert.False(t, st.Ready)
	assert.Equal(t, "Some checks failed: redis", st.Message)
	assert.True(t, st.Checks["postgres"].Healthy)
	assert.Equal(t, "refused", st.Checks["redis"].Message)

	c.RemoveCheck("redis")
	assert.True(t, c.Check(context.Background()).Healthy)
}

func TestCompositeHealthChecker_Details(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddDetailedCheck("postgres", func(context.Context) (map[string]any, error) {
		return map[string]any{"total_conns": int32(3), "max_conns": int32(10)}, nil
	})
	c.AddCheck("redis", NewPingCheck(pingFunc(func(context.Context) error { return nil })))

	st := c.Check(context.Background())
	require.True(t, st.Healthy)
	assert.Equal(t, int32(3), st.Checks["postgres"].Details["total_conns"])
	assert.Nil(t, st.Checks["redis"].Details)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	st := c.Check(context.Background())
	assert.False(t, st.Healthy)
	assert.Contains(t, st.Checks["slow"].Message, "deadline")
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestAPIKeyAuth(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{"secret", ""}, "/health")
	h := auth.Middleware(ok())

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing", "/api/v1/views", nil, http.StatusUnauthorized},
		{"wrong", "/api/v1/views", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", "/api/v1/views", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", "/api/v1/views", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"public path", "/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", nil)
	assert.False(t, auth.Enabled())

	rec := httptest.NewRecorder()
	auth.Middleware(ok()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/views", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(ok())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"page": 12345}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	rec := httptest.NewRecorder()
	ChainHandler(ok(), mw("a"), mw("b"), SecurityHeadersMiddleware, NoCacheMiddleware).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
