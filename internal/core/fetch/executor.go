package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/core"
)

// CacheHeader is set to "1" on responses served from a cache backend.
const CacheHeader = "X-From-Cache"

// Executor runs one merged request. Direct and cached strategies share it.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*http.Response, error)
}

type directExecutor struct {
	client *Client
}

// Execute drops CacheHeader from network responses so only a cache hit
// carries it.
func (d directExecutor) Execute(ctx context.Context, req *Request) (*http.Response, error) {
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Header.Del(CacheHeader)
	return resp, nil
}

// cachedExecutor serves GET and HEAD from cache and stores fresh 2xx
// responses. Cache failures degrade to the network and are only logged.
type cachedExecutor struct {
	backend Backend
	cache   core.ResponseCache
	next    Executor
	logger  *logging.Logger
	clock   func() time.Time
}

func (c cachedExecutor) Execute(ctx context.Context, req *Request) (*http.Response, error) {
	if !cacheable(req) {
		return c.next.Execute(ctx, req)
	}

	key := CacheKey(req)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		c.warn("cache lookup failed", key, err)
	} else if cached != nil {
		return toResponse(cached, req), nil
	}

	resp, err := c.next.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, BodyError(req.URL, err)
	}

	entry := &core.CachedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   c.now(),
	}
	if err := c.cache.Set(ctx, key, entry, req.CacheTTL); err != nil {
		c.warn("cache store failed", key, err)
	}

	// The caller gets its own reader over the buffered bytes.
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func (c cachedExecutor) warn(msg, key string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg,
		zap.String("backend", string(c.backend)),
		zap.String("key", key),
		zap.Error(err))
}

func (c cachedExecutor) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

// CacheKey identifies a request in every cache backend.
func CacheKey(req *Request) string {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + req.URL
}

func cacheable(req *Request) bool {
	if req == nil || req.CacheTTL <= 0 || len(req.Body) > 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(req.Method)) {
	case "", http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

func toResponse(entry *core.CachedResponse, req *Request) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(CacheHeader, "1")

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	httpReq, _ := http.NewRequest(method, req.URL, nil)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       httpReq,
	}
}
