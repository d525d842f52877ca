package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/dbsnap/component"
	apperrors "github.com/kbukum/dbsnap/errors"
)

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.NoError(t, cfg.Validate())

	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestServer_StartServeStop(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Host: "127.0.0.1"}, nil)
	s.ApplyDefaults("test", nil)
	sc := NewComponent(s)

	assert.Equal(t, component.StatusUnhealthy, sc.Health(ctx).Status)
	require.NoError(t, sc.Start(ctx))
	assert.Equal(t, component.StatusHealthy, sc.Health(ctx).Status)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["service"])

	require.NoError(t, sc.Stop(ctx))
	assert.Equal(t, component.StatusUnhealthy, sc.Health(ctx).Status)
}

func TestServer_HealthReportsUnhealthyComponents(t *testing.T) {
	s := New(Config{}, nil)
	s.ApplyDefaults("test", func(context.Context) []component.Health {
		return []component.Health{{Name: "database", Status: component.StatusUnhealthy, Message: "down"}}
	})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_Version(t *testing.T) {
	s := New(Config{}, nil)
	s.ApplyDefaults("test", nil)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["version"])
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"app error", apperrors.NotFound("item", "1"), http.StatusNotFound},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)
			assert.Equal(t, tt.code, rr.Code)

			var body apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}
