package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "regassist/pkg/domain"
	"regassist/pkg/requestcontext"
)

func TestHandler(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(1, 2, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(func() time.Time { return now }))
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
		if actor != "" {
			req = req.WithContext(requestcontext.WithAuthorization(req.Context(), requestcontext.Auth{Actor: actor, Role: id.RoleAnalyst}))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("jane").Code)
	assert.Equal(t, http.StatusOK, call("jane").Code)

	w := call("jane")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("joe").Code, "buckets are per caller")
	assert.Equal(t, http.StatusOK, call("").Code, "unauthenticated callers are keyed by address")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("jane").Code, "bucket refills")
}

func TestIdleBucketsAreEvicted(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(10, 10, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return now }),
		WithIdleTTL(time.Minute),
	)
	handler := m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1, m.Callers())

	now = now.Add(2 * time.Minute)
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "192.0.2.9:1234"
	handler.ServeHTTP(httptest.NewRecorder(), other)
	assert.Equal(t, 1, m.Callers())
}
