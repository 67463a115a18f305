//go:build !integration

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"streamer-live-bot/internal/infra/logging"
)

func TestChain(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var sawTrace string
	var sawDeadline bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawTrace = logging.TraceID(r.Context())
		_, sawDeadline = r.Context().Deadline()
		if r.URL.Path == "/panic" {
			panic("boom")
		}
		w.WriteHeader(http.StatusTeapot)
	}), TraceID(), RequestLog(&logger), Recover(&logger), Timeout(time.Second))

	t.Run("should echo a generated trace id and log the status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.NotEmpty(t, sawTrace)
		assert.Equal(t, sawTrace, rec.Header().Get("X-Request-ID"))
		assert.True(t, sawDeadline)
		assert.Contains(t, buf.String(), `"status":418`)
		assert.Contains(t, buf.String(), `"level":"warn"`)
	})

	t.Run("should keep a caller trace id and recover panics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		req.Header.Set("X-Request-ID", "given-id")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "given-id", sawTrace)
		assert.Contains(t, buf.String(), "panic recovered")
	})
}

func TestTimeout(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
