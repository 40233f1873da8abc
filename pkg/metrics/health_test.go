package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	healthChecker = newHealthChecker()
}

func TestRegisterComponent(t *testing.T) {
	resetHealth(t)

	RegisterComponent("store", true, "opened")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["store"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "opened", comp.Message)
	assert.False(t, comp.Updated.IsZero())
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		wantStatus string
	}{
		{name: "no components", components: nil, wantStatus: "healthy"},
		{name: "all healthy", components: map[string]bool{"luxi": true, "store": true}, wantStatus: "healthy"},
		{name: "one unhealthy", components: map[string]bool{"luxi": true, "store": false}, wantStatus: "unhealthy"},
		{name: "data files failing", components: map[string]bool{"luxi": true, "datafiles": false}, wantStatus: "degraded"},
		{name: "critical wins over degraded", components: map[string]bool{"store": false, "datafiles": false}, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("2.16.0")
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "broken")
			}

			health := GetHealth()
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Len(t, health.Components, len(tt.components))
			assert.Equal(t, "2.16.0", health.Version)
		})
	}
}

func TestGetHealth_ComponentMessage(t *testing.T) {
	resetHealth(t)
	RegisterComponent("store", false, "database locked")

	health := GetHealth()
	assert.Equal(t, "unhealthy: database locked", health.Components["store"])
}

func TestGetReadiness(t *testing.T) {
	resetHealth(t)
	RegisterComponent(ComponentStore, true, "")
	RegisterComponent(ComponentQueue, true, "")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Contains(t, readiness.Message, ComponentLuxi)
	assert.Equal(t, "not registered", readiness.Components[ComponentLuxi])

	RegisterComponent(ComponentLuxi, true, "")
	readiness = GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
	assert.Empty(t, readiness.Message)
}

func TestGetReadiness_CriticalComponentUnhealthy(t *testing.T) {
	resetHealth(t)
	RegisterComponent(ComponentStore, false, "bolt timeout")
	RegisterComponent(ComponentQueue, true, "")
	RegisterComponent(ComponentLuxi, true, "")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "not ready: bolt timeout", readiness.Components[ComponentStore])
}

func TestSetCriticalComponents(t *testing.T) {
	resetHealth(t)
	SetCriticalComponents("luxi")
	RegisterComponent("luxi", true, "")

	assert.Equal(t, "ready", GetReadiness().Status)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name      string
		component string
		healthy   bool
		wantCode  int
	}{
		{name: "healthy", component: ComponentStore, healthy: true, wantCode: http.StatusOK},
		{name: "unhealthy", component: ComponentStore, healthy: false, wantCode: http.StatusServiceUnavailable},
		{name: "degraded", component: ComponentDataFiles, healthy: false, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			RegisterComponent(tt.component, tt.healthy, "")

			w := httptest.NewRecorder()
			HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var health HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
			assert.NotEmpty(t, health.Uptime)
		})
	}
}

func TestReadyHandler(t *testing.T) {
	resetHealth(t)

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	RegisterComponent(ComponentStore, true, "")
	RegisterComponent(ComponentQueue, true, "")
	RegisterComponent(ComponentLuxi, true, "")

	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
}
