package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Daemon components reporting their state. The first three are critical:
// luxid is not ready until all of them are up.
const (
	ComponentLuxi      = "luxi"
	ComponentStore     = "store"
	ComponentQueue     = "jqueue"
	ComponentDataFiles = "datafiles"
)

// Overall states reported by /health and /ready
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the JSON body of the health endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last state reported by one component
type ComponentHealth struct {
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker keeps the reported component states
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   map[string]bool
	startTime  time.Time
	version    string
}

var healthChecker = newHealthChecker()

func newHealthChecker() *HealthChecker {
	h := &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
	h.setCritical(ComponentStore, ComponentQueue, ComponentLuxi)
	return h
}

func (h *HealthChecker) setCritical(names ...string) {
	h.critical = make(map[string]bool, len(names))
	for _, n := range names {
		h.critical[n] = true
	}
}

// SetVersion sets the version reported by the health endpoints
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// SetCriticalComponents replaces the components readiness waits for
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.setCritical(names...)
}

// RegisterComponent records the current state of a component. Later calls
// overwrite earlier ones.
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.components[name] = ComponentHealth{
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

func (h *HealthChecker) status(state, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     state,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

// GetHealth reports unhealthy when a critical component fails and
// degraded when only other components do
func GetHealth() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := StatusHealthy
	components := make(map[string]string, len(h.components))
	for name, comp := range h.components {
		if comp.Healthy {
			components[name] = StatusHealthy
			continue
		}
		components[name] = StatusUnhealthy + ": " + comp.Message
		if h.critical[name] {
			state = StatusUnhealthy
		} else if state == StatusHealthy {
			state = StatusDegraded
		}
	}
	return h.status(state, "", components)
}

// GetReadiness reports ready once every critical component is up
func GetReadiness() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.critical))
	for name := range h.critical {
		names = append(names, name)
	}
	sort.Strings(names)

	state := StatusReady
	var message string
	components := make(map[string]string, len(names))
	for _, name := range names {
		comp, ok := h.components[name]
		switch {
		case !ok:
			components[name] = "not registered"
		case !comp.Healthy:
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = StatusReady
			continue
		}
		if state == StatusReady {
			message = "waiting for " + name
		}
		state = StatusNotReady
	}
	return h.status(state, message, components)
}

func writeStatus(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves GetHealth. Only an unhealthy daemon answers 503.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, health)
	}
}

// ReadyHandler serves GetReadiness
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, readiness)
	}
}

// LivenessHandler answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).Round(time.Second).String(),
		})
	}
}
