package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/Mearman/mcp-wayback-machine/internal/errors"
)

func failing(msg string) CheckerFunc {
	return func(ctx context.Context) error { return errors.New(msg) }
}

func passing() CheckerFunc {
	return func(ctx context.Context) error { return nil }
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("limiter", passing())

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, StatusHealthy, resp.Checks["limiter"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("registry", failing("empty"))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	require.Equal(t, StatusUnhealthy, checks["registry"])
}

func TestOptionalCheckOnlyDegrades(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("registry", passing())
	manager.RegisterOptional("redis", failing("connection refused"))

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, StatusDegraded, resp.Status)
}

func TestProbesReportFailureByName(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("registry", failing("gone"))

	for path, handler := range map[string]http.HandlerFunc{
		"live":    manager.LivenessHandler,
		"startup": manager.StartupHandler,
	} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health/"+path, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, path+" probe failed", resp.Error.Message)
		require.Equal(t, path, resp.Error.Details["probe"])
	}
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")
	require.Equal(t, StatusDegraded, manager.determineOverallStatus(map[string]string{"db": StatusTimeout}))
	require.Equal(t, StatusHealthy, manager.determineOverallStatus(nil))
}
