package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHealth(t *testing.T) {
	r := NewRegistry("1.0.0")
	r.Set(ComponentAPI, true, true, "127.0.0.1:6817")
	var storeErr error
	r.Watch(ComponentStore, true, func() error { return storeErr })
	var nodesErr error
	r.Watch(ComponentNodes, false, func() error { return nodesErr })

	rep := r.Health()
	assert.Equal(t, StatusHealthy, rep.Status)
	assert.Len(t, rep.Components, 3)
	assert.Equal(t, "1.0.0", rep.Version)

	nodesErr = errors.New("1 of 4 nodes not responding: lx3")
	rep = r.Health()
	assert.Equal(t, StatusDegraded, rep.Status)
	assert.False(t, rep.Components[ComponentNodes].Healthy)
	assert.Equal(t, "1 of 4 nodes not responding: lx3", rep.Components[ComponentNodes].Message)

	storeErr = errors.New("database not open")
	rep = r.Health()
	assert.Equal(t, StatusUnhealthy, rep.Status)
	assert.True(t, rep.Components[ComponentStore].Critical)
}

func TestRegistryReadiness(t *testing.T) {
	r := NewRegistry("", ComponentStore, ComponentAPI)
	r.Watch(ComponentStore, true, func() error { return nil })

	rep := r.Readiness()
	assert.Equal(t, StatusNotReady, rep.Status)
	assert.Equal(t, []string{ComponentAPI}, rep.Waiting)

	r.Set(ComponentAPI, true, true, "")
	r.Watch(ComponentNodes, false, func() error { return errors.New("lx1 not responding") })
	rep = r.Readiness()
	assert.Equal(t, StatusReady, rep.Status)
	assert.Empty(t, rep.Waiting)

	r.Set(ComponentAPI, true, false, "listener closed")
	rep = r.Readiness()
	assert.Equal(t, StatusNotReady, rep.Status)
	assert.Equal(t, []string{ComponentAPI}, rep.Waiting)
}

func TestRegistryWatchEvaluatedPerReport(t *testing.T) {
	r := NewRegistry("")
	calls := 0
	r.Watch(ComponentStore, true, func() error { calls++; return nil })
	r.Health()
	r.Readiness()
	assert.Equal(t, 2, calls)
}

func TestHandlers(t *testing.T) {
	failing := func() error { return errors.New("down") }
	tests := []struct {
		name    string
		setup   func(r *Registry)
		handler func(r *Registry) http.HandlerFunc
		code    int
		status  string
	}{
		{
			name:    "healthy",
			setup:   func(r *Registry) { r.Set(ComponentAPI, true, true, "") },
			handler: (*Registry).HealthHandler,
			code:    http.StatusOK,
			status:  StatusHealthy,
		},
		{
			name:    "degraded",
			setup:   func(r *Registry) { r.Watch(ComponentNodes, false, failing) },
			handler: (*Registry).HealthHandler,
			code:    http.StatusOK,
			status:  StatusDegraded,
		},
		{
			name:    "unhealthy",
			setup:   func(r *Registry) { r.Watch(ComponentStore, true, failing) },
			handler: (*Registry).HealthHandler,
			code:    http.StatusServiceUnavailable,
			status:  StatusUnhealthy,
		},
		{
			name:    "not ready",
			setup:   func(r *Registry) { r.Set(ComponentAPI, true, true, "") },
			handler: (*Registry).ReadyHandler,
			code:    http.StatusServiceUnavailable,
			status:  StatusNotReady,
		},
		{
			name: "ready",
			setup: func(r *Registry) {
				r.Set(ComponentAPI, true, true, "")
				r.Watch(ComponentStore, true, func() error { return nil })
			},
			handler: (*Registry).ReadyHandler,
			code:    http.StatusOK,
			status:  StatusReady,
		},
		{
			name:    "alive",
			setup:   func(r *Registry) { r.Watch(ComponentStore, true, failing) },
			handler: (*Registry).LivenessHandler,
			code:    http.StatusOK,
			status:  "alive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry("", ComponentStore, ComponentAPI)
			tt.setup(r)

			rec := httptest.NewRecorder()
			tt.handler(r)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}
