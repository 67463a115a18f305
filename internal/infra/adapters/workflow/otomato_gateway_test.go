//go:build !integration

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
)

type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

type fakeAPI struct {
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T, routes map[string]http.HandlerFunc) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.calls = append(api.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		api.mu.Unlock()
		if h, ok := api.routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) Calls() []recordedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]recordedCall(nil), a.calls...)
}

func newTestGateway(t *testing.T, baseURL string, mutate ...func(*config.AutomationConfig)) *OtomatoGateway {
	t.Helper()
	cfg := config.AutomationConfig{BaseURL: baseURL, Token: "secret-token", Timeout: 2 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	logger := zerolog.New(io.Discard)
	g, err := NewOtomatoGateway(cfg, &logger)
	require.NoError(t, err)
	g.rollbackDelay = time.Millisecond
	return g
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var testSpec = model.WorkflowSpec{Name: "Abstract Streamer Notifications - ares", State: "inactive"}

func TestOtomatoGateway_Create(t *testing.T) {
	t.Run("creates then runs with the raw token", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows":          func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 201, map[string]string{"id": "wf-1"}) },
			"POST /workflows/wf-1/run": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
		})
		g := newTestGateway(t, srv.URL)

		id, err := g.Create(context.Background(), testSpec)
		require.NoError(t, err)
		assert.Equal(t, "wf-1", id)

		calls := api.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "secret-token", calls[0].Auth)
		var sent model.WorkflowSpec
		require.NoError(t, json.Unmarshal(calls[0].Body, &sent))
		assert.Equal(t, testSpec.Name, sent.Name)
		assert.Equal(t, "/workflows/wf-1/run", calls[1].Path)
	})

	t.Run("auth scheme is prepended when configured", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"GET /workflows": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, []any{}) },
		})
		g := newTestGateway(t, srv.URL, func(c *config.AutomationConfig) { c.AuthScheme = "Bearer" })
		_, err := g.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer secret-token", api.Calls()[0].Auth)
	})

	t.Run("failed run deletes the created workflow", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 201, map[string]string{"id": "wf-2"}) },
			"POST /workflows/wf-2/run": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 500, map[string]string{"message": "engine unavailable"})
			},
			"DELETE /workflows/wf-2": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		})
		g := newTestGateway(t, srv.URL)

		id, err := g.Create(context.Background(), testSpec)
		assert.Empty(t, id)
		var ge *domain.GatewayError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, domain.GatewayRejected, ge.Kind)
		assert.Equal(t, "run", ge.Op)
		assert.Equal(t, "engine unavailable", ge.Message)

		calls := api.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, http.MethodDelete, calls[2].Method)
	})

	t.Run("rollback delete is retried", func(t *testing.T) {
		var deletes int
		var mu sync.Mutex
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows":          func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 201, map[string]string{"id": "wf-3"}) },
			"POST /workflows/wf-3/run": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			"DELETE /workflows/wf-3": func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				deletes++
				if deletes < 2 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			},
		})
		g := newTestGateway(t, srv.URL)
		_, err := g.Create(context.Background(), testSpec)
		require.Error(t, err)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, deletes)
	})

	t.Run("run timeout is a network failure and rolls back", func(t *testing.T) {
		api, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 201, map[string]string{"id": "wf-4"}) },
			"POST /workflows/wf-4/run": func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(500 * time.Millisecond):
				case <-r.Context().Done():
				}
			},
			"DELETE /workflows/wf-4": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		})
		g := newTestGateway(t, srv.URL, func(c *config.AutomationConfig) { c.Timeout = 50 * time.Millisecond })

		_, err := g.Create(context.Background(), testSpec)
		assert.True(t, domain.IsGatewayKind(err, domain.GatewayNetwork), "got %v", err)
		var sawDelete bool
		for _, c := range api.Calls() {
			if c.Method == http.MethodDelete && c.Path == "/workflows/wf-4" {
				sawDelete = true
			}
		}
		assert.True(t, sawDelete, "expected a rollback delete")
	})

	t.Run("missing id is malformed", func(t *testing.T) {
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, map[string]string{}) },
		})
		g := newTestGateway(t, srv.URL)
		_, err := g.Create(context.Background(), testSpec)
		assert.True(t, domain.IsGatewayKind(err, domain.GatewayMalformed), "got %v", err)
	})

	t.Run("401 is an auth failure", func(t *testing.T) {
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"POST /workflows": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
		})
		g := newTestGateway(t, srv.URL)
		_, err := g.Create(context.Background(), testSpec)
		assert.True(t, domain.IsGatewayKind(err, domain.GatewayAuth), "got %v", err)
	})
}

func TestOtomatoGateway_List(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"GET /workflows": func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `[
					{"id":"wf-1","name":"Abstract Streamer Notifications - a","state":"active","dateCreated":"2025-01-02T03:04:05Z","lastExecution":{"dateCreated":"2025-01-03T00:00:00Z"}},
					{"id":"wf-2","name":"other","state":"inactive","dateCreated":1735787045000},
					{"name":"no id"}
				]`)
			},
		})
		g := newTestGateway(t, srv.URL)
		items, err := g.List(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "active", items[0].State)
		require.NotNil(t, items[0].LastExecution)
		assert.Equal(t, 2025, items[0].LastExecution.Year())
		assert.Nil(t, items[1].LastExecution)
		assert.False(t, items[1].DateCreated.IsZero())
	})

	t.Run("data envelope", func(t *testing.T) {
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"GET /workflows": func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"data":[{"id":"wf-9","name":"x","state":"active"}]}`)
			},
		})
		g := newTestGateway(t, srv.URL)
		items, err := g.List(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "wf-9", items[0].ID)
	})

	t.Run("garbage body is malformed", func(t *testing.T) {
		_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
			"GET /workflows": func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `<html>`) },
		})
		g := newTestGateway(t, srv.URL)
		_, err := g.List(context.Background())
		assert.True(t, domain.IsGatewayKind(err, domain.GatewayMalformed), "got %v", err)
	})
}

func TestOtomatoGateway_Delete(t *testing.T) {
	_, srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"DELETE /workflows/wf-1": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
	})
	g := newTestGateway(t, srv.URL)

	require.NoError(t, g.Delete(context.Background(), "wf-1"))

	err := g.Delete(context.Background(), "wf-missing")
	assert.True(t, domain.IsGatewayKind(err, domain.GatewayNotFound))
	assert.True(t, errors.Is(err, domain.ErrNotFound), "remote 404 should match ErrNotFound")

	assert.ErrorIs(t, g.Delete(context.Background(), " "), domain.ErrInvalidArgument)
}

func TestOtomatoGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := newTestGateway(t, url)
	_, err := g.List(context.Background())
	assert.True(t, domain.IsGatewayKind(err, domain.GatewayNetwork), "got %v", err)
}

func TestNewOtomatoGateway_Validation(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewOtomatoGateway(config.AutomationConfig{BaseURL: "https://api.otomato.xyz/api"}, &logger)
	assert.Error(t, err, "empty token")
	_, err = NewOtomatoGateway(config.AutomationConfig{BaseURL: "not a url", Token: "x"}, &logger)
	assert.Error(t, err, "bad url")
}
