package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/core"
)

// Options are the per-call overrides merged over the façade config.
type Options struct {
	Method   string
	Headers  Headers
	Body     []byte
	Backend  Backend
	Timeout  time.Duration
	CacheTTL time.Duration
	// NoCache forces the direct backend for this call only.
	NoCache bool
}

// Result is a successful fetch. Backend is the strategy that actually ran;
// Degraded is set when Requested was a cache backend that is unavailable.
type Result struct {
	Response  *http.Response
	Requested Backend
	Backend   Backend
	Degraded  bool
	FromCache bool
}

// Facade applies process-wide fetch defaults and picks an execution
// strategy per call.
type Facade struct {
	client *Client
	logger *logging.Logger
	clock  func() time.Time

	mu     sync.RWMutex
	cfg    Config
	caches map[Backend]core.ResponseCache
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithCache registers the store behind a cached backend. A nil cache marks
// the backend unavailable, which degrades calls to direct.
func WithCache(backend Backend, cache core.ResponseCache) FacadeOption {
	return func(f *Facade) {
		if backend.Cached() {
			f.caches[backend] = cache
		}
	}
}

// WithLogger sets the logger used for degradation and cache warnings.
func WithLogger(logger *logging.Logger) FacadeOption {
	return func(f *Facade) {
		f.logger = logger
	}
}

// WithClock overrides the time source used to stamp cache entries.
func WithClock(clock func() time.Time) FacadeOption {
	return func(f *Facade) {
		f.clock = clock
	}
}

// NewFacade validates cfg and returns a façade over client.
func NewFacade(cfg Config, client *Client, opts ...FacadeOption) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = NewClient(cfg.Timeout)
	}

	f := &Facade{
		client: client,
		cfg:    cfg,
		caches: make(map[Backend]core.ResponseCache),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Config returns a copy of the effective configuration.
func (f *Facade) Config() Config {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cfg := f.cfg
	cfg.Headers = HeadersFrom(f.cfg.Headers)
	return cfg
}

// Update merges patch into the configuration. The swap happens only if the
// merged result validates; otherwise the previous configuration stays in
// effect and a *ConfigInvalidError is returned.
func (f *Facade) Update(patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	merged, err := f.cfg.Merge(patch)
	if err != nil {
		return err
	}
	f.cfg = merged
	return nil
}

// Fetch merges headers, selects a backend, and executes the request.
func (f *Facade) Fetch(ctx context.Context, url string, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := f.Config()

	requested := opts.Backend
	if requested == "" {
		requested = cfg.Backend
	}
	if requested == "" {
		requested = BackendDirect
	}

	req := &Request{
		URL:      url,
		Method:   opts.Method,
		Header:   MergeHeaders(cfg.Headers, cfg.UserAgent, opts.Headers).HTTPHeader(),
		Body:     opts.Body,
		Timeout:  opts.Timeout,
		CacheTTL: opts.CacheTTL,
	}
	if req.Timeout <= 0 {
		req.Timeout = cfg.Timeout
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = cfg.CacheTTL
	}

	executor, used, degraded := f.resolve(requested, opts.NoCache)
	if degraded {
		f.warn("cache backend unavailable, falling back to direct",
			zap.String("backend", string(requested)),
			zap.String("url", url))
	}

	resp, err := executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Response:  resp,
		Requested: requested,
		Backend:   used,
		Degraded:  degraded,
		FromCache: resp.Header.Get(CacheHeader) == "1",
	}, nil
}

// resolve maps a backend to its executor. Bypass and missing stores both
// end at direct; only the latter counts as degraded.
func (f *Facade) resolve(backend Backend, noCache bool) (Executor, Backend, bool) {
	direct := directExecutor{client: f.client}

	switch backend {
	case BackendMemory, BackendDisk, BackendRedis:
		if noCache {
			return direct, BackendDirect, false
		}
		f.mu.RLock()
		cache := f.caches[backend]
		f.mu.RUnlock()
		if cache == nil {
			return direct, BackendDirect, true
		}
		return cachedExecutor{
			backend: backend,
			cache:   cache,
			next:    direct,
			logger:  f.logger,
			clock:   f.clock,
		}, backend, false
	default:
		return direct, BackendDirect, false
	}
}

// Available reports whether a cached backend has an initialized store.
func (f *Facade) Available(backend Backend) bool {
	if backend == BackendDirect {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.caches[backend] != nil
}

// ClearCaches clears every initialized cache backend. Failures are logged
// and collected; one failing backend never stops the others.
func (f *Facade) ClearCaches(ctx context.Context) []error {
	if ctx == nil {
		ctx = context.Background()
	}

	var failures []error
	for _, backend := range Backends {
		f.mu.RLock()
		cache := f.caches[backend]
		f.mu.RUnlock()
		if cache == nil {
			continue
		}
		if err := cache.Clear(ctx); err != nil {
			f.warn("cache clear failed", zap.String("backend", string(backend)), zap.Error(err))
			failures = append(failures, fmt.Errorf("clear %s cache: %w", backend, err))
		}
	}
	return failures
}

// Shutdown closes cache stores that hold resources.
func (f *Facade) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for backend, cache := range f.caches {
		closer, ok := cache.(io.Closer)
		if !ok || closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s cache: %w", backend, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Facade) warn(msg string, fields ...zap.Field) {
	if f.logger == nil {
		return
	}
	f.logger.Warn(msg, fields...)
}
