// Package wayback implements the Wayback Machine operations: requesting a
// capture, finding the closest snapshot, listing captures and summarising
// archive coverage. Every outbound request waits for a slot in the shared
// sliding-window limiter and goes through the fetch façade.
package wayback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/core/engine"
	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/metrics"
)

const (
	DefaultBaseURL         = "https://web.archive.org"
	DefaultAvailabilityURL = "https://archive.org"
	DefaultStatusScanLimit = 10000

	maxResponseBody = 16 << 20
)

// Fetcher is the slice of the fetch façade the operations depend on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) (*fetch.Result, error)
}

// CallOptions are per-invocation overrides chosen by the front end.
type CallOptions struct {
	NoCache bool
	Backend fetch.Backend
}

// Client runs the archive operations.
type Client struct {
	Fetcher         Fetcher
	Limiter         *engine.RateLimiter
	BaseURL         string
	AvailabilityURL string
	StatusScanLimit int
	Logger          *logging.Logger
}

type response struct {
	status    int
	header    http.Header
	body      []byte
	fromCache bool
}

func (c *Client) get(ctx context.Context, target string, call CallOptions) (*response, error) {
	return c.do(ctx, target, fetch.Options{
		Method:  http.MethodGet,
		Backend: call.Backend,
		NoCache: call.NoCache,
	})
}

func (c *Client) do(ctx context.Context, target string, opts fetch.Options) (*response, error) {
	if c == nil || c.Fetcher == nil {
		return nil, errors.New("wayback client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.Limiter != nil {
		waitStart := time.Now()
		if err := c.Limiter.WaitForSlot(ctx); err != nil {
			return nil, err
		}
		metrics.RecordLimiterWait(time.Since(waitStart))
		c.Limiter.RecordAdmission()
	}

	c.debug("wayback request", zap.String("method", opts.Method), zap.String("url", target))

	result, err := c.Fetcher.Fetch(ctx, target, opts)
	if err != nil {
		c.debug("wayback request failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}
	defer result.Response.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
	metrics.RecordFetch(string(result.Backend), result.FromCache, result.Degraded)

	body, err := io.ReadAll(io.LimitReader(result.Response.Body, maxResponseBody))
	if err != nil {
		return nil, fetch.BodyError(target, err)
	}

	return &response{
		status:    result.Response.StatusCode,
		header:    result.Response.Header,
		body:      body,
		fromCache: result.FromCache,
	}, nil
}

// Ping checks that the archive answers a HEAD request on its base URL. A
// 4xx answer still proves the archive is reachable; 5xx, timeouts and
// transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, c.baseURL()+"/", fetch.Options{Method: http.MethodHead, NoCache: true})
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) && fetchErr.Kind == fetch.KindHTTPStatus && fetchErr.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return err
}

func (c *Client) baseURL() string {
	if c != nil && strings.TrimSpace(c.BaseURL) != "" {
		return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	}
	return DefaultBaseURL
}

func (c *Client) availabilityURL() string {
	if c != nil && strings.TrimSpace(c.AvailabilityURL) != "" {
		return strings.TrimRight(strings.TrimSpace(c.AvailabilityURL), "/")
	}
	return DefaultAvailabilityURL
}

func (c *Client) statusScanLimit() int {
	if c != nil && c.StatusScanLimit > 0 {
		return c.StatusScanLimit
	}
	return DefaultStatusScanLimit
}

func (c *Client) archivedURL(timestamp, original string) string {
	return fmt.Sprintf("%s/web/%s/%s", c.baseURL(), timestamp, original)
}

func (c *Client) debug(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}

// failure converts a remote error into a reportable result.
func failure(target, action string, err error) *Result {
	return &Result{Success: false, URL: target, Message: fmt.Sprintf("%s: %s", action, describe(err))}
}

func describe(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}

	var fetchErr *fetch.Error
	if !errors.As(err, &fetchErr) {
		return err.Error()
	}

	switch fetchErr.Kind {
	case fetch.KindTimeout:
		return fmt.Sprintf("request timed out after %s", fetchErr.Timeout)
	case fetch.KindHTTPStatus:
		if fetchErr.StatusCode == http.StatusTooManyRequests {
			msg := "rate limited by the Wayback Machine (HTTP 429)"
			if wait := retryAfter(fetchErr.Header); wait > 0 {
				msg += fmt.Sprintf(", retry in %s", wait.Round(time.Second))
			}
			return msg
		}
		status := strings.TrimSpace(fetchErr.Status)
		if status == "" {
			status = fmt.Sprintf("%d", fetchErr.StatusCode)
		}
		return "Wayback Machine returned HTTP " + status
	default:
		if fetchErr.Err != nil {
			return "network error: " + fetchErr.Err.Error()
		}
		return "network error"
	}
}

func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}

	retry := strings.TrimSpace(header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
