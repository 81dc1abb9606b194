// Package metrics emits the application counters. Every function is a no-op
// until observability.InitMetrics has run.
package metrics

import (
	"strconv"
	"time"

	"github.com/Mearman/mcp-wayback-machine/internal/observability"
)

// Metric names
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
	ToolCallsTotalName   = "tool_calls_total"
	ToolCallDurationName = "tool_call_duration_ms"
	FetchesTotalName     = "fetches_total"
	LimiterWaitName      = "rate_limiter_wait_ms"
	IngressRejectedName  = "ingress_rejected_total"
	HTTPRequestsName     = "http_requests_total"
	HTTPDurationName     = "http_request_duration_ms"
)

// RecordError records an error with code and status
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
		})
	}
}

// RecordPanic records a panic recovery
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, nil)
	}
}

// RecordErrorByEndpoint records an error by route pattern
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsByEndpointName, 1, map[string]string{
			"endpoint":   endpoint,
			"error_code": errorCode,
		})
	}
}

// RecordToolCall records one tool invocation. outcome is success, failure
// (remote problem reported in the result) or rejected (invalid input).
func RecordToolCall(tool, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"tool": tool, "outcome": outcome}
	_ = observability.TelemetrySystem.Counter(ToolCallsTotalName, 1, labels)
	_ = observability.TelemetrySystem.Histogram(ToolCallDurationName, duration, map[string]string{"tool": tool})
}

// RecordFetch records which backend served an outbound request.
func RecordFetch(backend string, fromCache, degraded bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(FetchesTotalName, 1, map[string]string{
			"backend":    backend,
			"from_cache": strconv.FormatBool(fromCache),
			"degraded":   strconv.FormatBool(degraded),
		})
	}
}

// RecordLimiterWait records time spent waiting for an outbound slot.
func RecordLimiterWait(wait time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(LimiterWaitName, wait, nil)
	}
}

// RecordIngressRejected counts requests refused by the inbound limiter.
func RecordIngressRejected(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(IngressRejectedName, 1, map[string]string{"endpoint": endpoint})
	}
}

// RecordHTTPRequest records a completed request on the tool server.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	}
	_ = observability.TelemetrySystem.Counter(HTTPRequestsName, 1, labels)
	_ = observability.TelemetrySystem.Histogram(HTTPDurationName, duration, labels)
}
