package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mearman/mcp-wayback-machine/internal/core/engine"
	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
	"github.com/Mearman/mcp-wayback-machine/internal/server"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError reports sandboxes that refuse loopback sockets.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

func listenOrSkip(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}
	return listener
}

// fakeArchive answers CDX status scans and counts upstream hits.
func fakeArchive(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := &httptest.Server{
		Listener: listenOrSkip(t),
		Config: &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if r.URL.Path != "/cdx/search/cdx" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[["timestamp","statuscode"],["20200101000000","200"],["20230615120000","200"]]`))
		})},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

// newToolServer wires the real limiter, façade, operations and registry
// behind the HTTP tool API.
func newToolServer(t *testing.T, archiveURL string) (*httptest.Server, *http.Client) {
	t.Helper()

	cfg := fetch.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	facade, err := fetch.NewFacade(cfg, fetch.NewClient(cfg.Timeout),
		fetch.WithCache(fetch.BackendMemory, fetch.NewMemoryCache(cfg.MaxCacheSize)))
	require.NoError(t, err)

	client := &wayback.Client{
		Fetcher:         facade,
		Limiter:         engine.NewRateLimiter(engine.RateLimit{RequestsPerWindow: 100, WindowDuration: time.Minute}),
		BaseURL:         archiveURL,
		AvailabilityURL: archiveURL,
	}
	registry, err := tools.NewWaybackRegistry(client)
	require.NoError(t, err)

	srv, err := server.New(server.Options{Host: "127.0.0.1", Registry: registry})
	require.NoError(t, err)

	ts := &httptest.Server{
		Listener: listenOrSkip(t),
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func callStatus(t *testing.T, client *http.Client, base, query string) wayback.Result {
	t.Helper()
	body, err := json.Marshal(map[string]any{"url": "https://example.com/"})
	require.NoError(t, err)

	resp, err := client.Post(base+"/tools/"+tools.CheckArchiveStatus+query, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result wayback.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestToolServer_CachesThroughMemoryBackend(t *testing.T) {
	require.NoError(t, observability.InitServerLogger("test", "info"))

	var hits atomic.Int32
	archive := fakeArchive(t, &hits)
	ts, client := newToolServer(t, archive.URL)

	first := callStatus(t, client, ts.URL, "?backend=memory")
	require.True(t, first.Success)
	require.False(t, first.FromCache)
	require.Equal(t, 2, *first.TotalCaptures)
	require.Equal(t, map[string]int{"2020": 1, "2023": 1}, first.YearlyCaptures)

	second := callStatus(t, client, ts.URL, "?backend=memory")
	require.True(t, second.FromCache)
	require.Equal(t, int32(1), hits.Load())

	third := callStatus(t, client, ts.URL, "?backend=memory&no_cache=true")
	require.False(t, third.FromCache)
	require.Equal(t, int32(2), hits.Load())
}

func TestMetricsEndpoint_Integration(t *testing.T) {
	require.NoError(t, observability.InitServerLogger("test", "info"))

	initMetricsOrSkip(t)

	var hits atomic.Int32
	archive := fakeArchive(t, &hits)
	ts, client := newToolServer(t, archive.URL)

	const numRequests = 40
	const numWorkers = 8

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				var resp *http.Response
				var err error
				switch reqNum % 4 {
				case 0:
					resp, err = client.Post(ts.URL+"/tools/"+tools.CheckArchiveStatus, "application/json",
						strings.NewReader(`{"url":"https://example.com/"}`))
				case 1:
					resp, err = client.Post(ts.URL+"/tools/"+tools.CheckArchiveStatus, "application/json",
						strings.NewReader(`{"url":"ftp://example.com/"}`))
				case 2:
					resp, err = client.Get(ts.URL + "/tools")
				default:
					resp, err = client.Get(ts.URL + "/health")
				}
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsContent := string(body)
	assert.Contains(t, metricsContent, "test_http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, metricsContent, "test_http_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, metricsContent, "test_tool_calls_total", "Should have tool call metrics")
	assert.Contains(t, metricsContent, "test_fetches_total", "Should have fetch metrics")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
	t.Logf("Load test completed: %d requests in %v (%.2f req/s)", numRequests, elapsed, float64(numRequests)/elapsed.Seconds())
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	require.NoError(t, observability.InitServerLogger("test", "info"))

	initMetricsOrSkip(t)

	var hits atomic.Int32
	archive := fakeArchive(t, &hits)
	ts, client := newToolServer(t, archive.URL)

	result := callStatus(t, client, ts.URL, "")
	require.True(t, result.Success)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t,
		contentType == "text/plain; version=0.0.4" ||
			contentType == "text/plain; version=0.0.4; charset=utf-8",
		"Expected Prometheus content type, got: %s", contentType)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	metricLines := 0
	hasLabelledMetric := false
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		metricLines++
		if strings.Contains(line, "{") && len(strings.Fields(line)) >= 2 {
			hasLabelledMetric = true
		}
	}
	assert.True(t, hasLabelledMetric, "Should have valid Prometheus metric lines")
	assert.Greater(t, metricLines, 0, "Should have actual metric values")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	require.NoError(t, observability.InitServerLogger("test", "info"))

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	var hits atomic.Int32
	archive := fakeArchive(t, &hits)
	ts, client := newToolServer(t, archive.URL)

	result := callStatus(t, client, ts.URL, "")
	require.True(t, result.Success)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
