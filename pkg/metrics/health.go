package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Components reported by slurmctld
const (
	// ComponentStore is the state database; critical
	ComponentStore = "store"
	// ComponentAPI is the gRPC listener; critical
	ComponentAPI = "api"
	// ComponentNodes is slurmd responsiveness; a failure degrades the
	// controller but does not make it unready
	ComponentNodes = "nodes"
)

// Overall states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// Probe reports the current state of a component. A nil error is healthy.
type Probe func() error

// ComponentReport is the state of one component at report time
type ComponentReport struct {
	Healthy  bool      `json:"healthy"`
	Critical bool      `json:"critical"`
	Message  string    `json:"message,omitempty"`
	Checked  time.Time `json:"checked"`
}

// Report is the body of /health and /ready
type Report struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentReport `json:"components,omitempty"`
	Waiting    []string                   `json:"waiting,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
}

type component struct {
	critical bool
	probe    Probe
	healthy  bool
	message  string
	updated  time.Time
}

// Registry tracks the components of one controller. Pushed components keep
// the last state set on them; probed components are evaluated on every
// report.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*component
	required   []string
	started    time.Time
	version    string
	now        func() time.Time
}

// NewRegistry creates a registry. Readiness waits until every name in
// required has been registered and is healthy.
func NewRegistry(version string, required ...string) *Registry {
	return &Registry{
		components: make(map[string]*component),
		required:   required,
		started:    time.Now(),
		version:    version,
		now:        time.Now,
	}
}

// Set records the state of a pushed component
func (r *Registry) Set(name string, critical, healthy bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = &component{
		critical: critical,
		healthy:  healthy,
		message:  message,
		updated:  r.now(),
	}
}

// Watch registers a component whose state comes from probe
func (r *Registry) Watch(name string, critical bool, probe Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = &component{critical: critical, probe: probe}
}

// snapshot evaluates every component. Probes run outside the lock.
func (r *Registry) snapshot() map[string]ComponentReport {
	r.mu.RLock()
	comps := make(map[string]component, len(r.components))
	for name, c := range r.components {
		comps[name] = *c
	}
	r.mu.RUnlock()

	out := make(map[string]ComponentReport, len(comps))
	for name, c := range comps {
		rep := ComponentReport{Healthy: c.healthy, Critical: c.critical, Message: c.message, Checked: c.updated}
		if c.probe != nil {
			rep.Checked = r.now()
			rep.Healthy = true
			if err := c.probe(); err != nil {
				rep.Healthy = false
				rep.Message = err.Error()
			}
		}
		out[name] = rep
	}
	return out
}

func (r *Registry) report(status string, comps map[string]ComponentReport, waiting []string) Report {
	return Report{
		Status:     status,
		Timestamp:  r.now(),
		Components: comps,
		Waiting:    waiting,
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// Health is unhealthy when a critical component fails and degraded when
// only non-critical ones do
func (r *Registry) Health() Report {
	comps := r.snapshot()
	status := StatusHealthy
	for _, c := range comps {
		switch {
		case c.Healthy:
		case c.Critical:
			status = StatusUnhealthy
		case status == StatusHealthy:
			status = StatusDegraded
		}
	}
	return r.report(status, comps, nil)
}

// Readiness lists the required or critical components that are missing or
// failing
func (r *Registry) Readiness() Report {
	comps := r.snapshot()
	var waiting []string
	for _, name := range r.required {
		if _, ok := comps[name]; !ok {
			waiting = append(waiting, name)
		}
	}
	for name, c := range comps {
		if c.Critical && !c.Healthy {
			waiting = append(waiting, name)
		}
	}
	sort.Strings(waiting)

	status := StatusReady
	if len(waiting) > 0 {
		status = StatusNotReady
	}
	return r.report(status, comps, waiting)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler serves /health. Degraded still answers 200.
func (r *Registry) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep := r.Health()
		code := http.StatusOK
		if rep.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	}
}

// ReadyHandler serves /ready
func (r *Registry) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep := r.Readiness()
		code := http.StatusOK
		if rep.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	}
}

// LivenessHandler answers 200 while the process runs
func (r *Registry) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(r.started).Round(time.Second).String(),
		})
	}
}
