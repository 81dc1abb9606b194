package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	apperrors "github.com/Mearman/mcp-wayback-machine/internal/errors"
	"github.com/Mearman/mcp-wayback-machine/internal/server/handlers"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

type stubOps struct {
	calls int
	call  wayback.CallOptions
	fail  bool
}

func (s *stubOps) result(url string, call wayback.CallOptions) (*wayback.Result, error) {
	s.calls++
	s.call = call
	if s.fail {
		return &wayback.Result{Success: false, URL: url, Message: "Wayback Machine returned HTTP 503"}, nil
	}
	return &wayback.Result{Success: true, URL: url, Message: "ok"}, nil
}

func (s *stubOps) Save(ctx context.Context, in wayback.SaveInput, call wayback.CallOptions) (*wayback.Result, error) {
	return s.result(in.URL, call)
}

func (s *stubOps) Retrieve(ctx context.Context, in wayback.RetrieveInput, call wayback.CallOptions) (*wayback.Result, error) {
	return s.result(in.URL, call)
}

func (s *stubOps) Search(ctx context.Context, in wayback.SearchInput, call wayback.CallOptions) (*wayback.Result, error) {
	return s.result(in.URL, call)
}

func (s *stubOps) Status(ctx context.Context, in wayback.StatusInput, call wayback.CallOptions) (*wayback.Result, error) {
	return s.result(in.URL, call)
}

func newTestServer(t *testing.T, opts Options) (*Server, *stubOps) {
	t.Helper()
	ops := &stubOps{}
	registry, err := tools.NewWaybackRegistry(ops)
	require.NoError(t, err)
	opts.Registry = registry

	srv, err := New(opts)
	require.NoError(t, err)
	return srv, ops
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:40000"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestListTools(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Tools, 4)
	require.Equal(t, tools.CheckArchiveStatus, body.Tools[0].Name)
}

func TestCallToolReturnsResult(t *testing.T) {
	srv, ops := newTestServer(t, Options{Call: wayback.CallOptions{Backend: fetch.BackendMemory}})

	rec := do(t, srv, http.MethodPost, "/tools/save_url?no_cache=true", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result wayback.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.True(t, result.Success)
	require.Equal(t, "https://example.com", result.URL)

	require.Equal(t, 1, ops.calls)
	require.True(t, ops.call.NoCache)
	require.Equal(t, fetch.BackendMemory, ops.call.Backend)
}

func TestCallToolBackendOverride(t *testing.T) {
	srv, ops := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/tools/get_archived_url?backend=disk", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, fetch.BackendDisk, ops.call.Backend)
}

func TestCallToolRemoteFailureIsNotAnHTTPError(t *testing.T) {
	srv, ops := newTestServer(t, Options{})
	ops.fail = true

	rec := do(t, srv, http.MethodPost, "/tools/check_archive_status", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result wayback.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.False(t, result.Success)
	require.Contains(t, result.Message, "503")
}

func TestCallToolValidationFailure(t *testing.T) {
	srv, ops := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/tools/search_archives", map[string]any{"limit": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "search_archives", body.Error.Details["tool"])
	require.Zero(t, ops.calls)
}

func TestCallUnknownTool(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/tools/delete_internet", map[string]any{})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestIngressLimiterGuardsToolRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	first := do(t, srv, http.MethodPost, "/tools/save_url", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, first.Code)

	second := do(t, srv, http.MethodPost, "/tools/save_url", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
	require.Equal(t, "RATE_LIMITED", decodeError(t, second).Error.Code)

	health := do(t, srv, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, health.Code)
}

func TestHealthUsesManager(t *testing.T) {
	manager := handlers.NewHealthManager("9.9.9")
	srv, _ := newTestServer(t, Options{Health: manager})

	rec := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "9.9.9", body.Version)
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	t.Setenv(AdminTokenEnv, "")
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/admin/signal", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
