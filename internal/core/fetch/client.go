package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a request when neither the call nor the client sets one.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 1 << 20
)

// Request is the fully merged record for one outbound call.
type Request struct {
	URL      string
	Method   string
	Header   http.Header
	Body     []byte
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client issues single requests bounded by a timeout and normalizes failures into *Error.
// It never retries.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with the given default timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{Timeout: timeout}
}

// Do executes req. On success the raw response is returned unmodified; the
// timeout stays armed until the caller closes the body, and a read it
// interrupts reports KindTimeout.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.timeout(req.Timeout)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		cancel()
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &Error{Kind: KindTimeout, URL: req.URL, Timeout: timeout, Err: context.DeadlineExceeded}
		}
		return nil, &Error{Kind: KindTransport, URL: req.URL, Err: unwrapURLError(err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Best effort: a failed body read must not hide the status.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		return nil, &Error{
			Kind:       KindHTTPStatus,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header.Clone(),
			Body:       string(raw),
		}
	}

	resp.Body = &timedBody{
		ReadCloser: resp.Body,
		parent:     ctx,
		reqCtx:     reqCtx,
		cancel:     cancel,
		url:        req.URL,
		timeout:    timeout,
	}
	return resp, nil
}

func (c *Client) timeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if c != nil && c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// timedBody keeps the request deadline armed while the body streams. A read
// cut short by that deadline fails with a KindTimeout *Error.
type timedBody struct {
	io.ReadCloser
	parent  context.Context
	reqCtx  context.Context
	cancel  context.CancelFunc
	url     string
	timeout time.Duration
}

func (b *timedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF &&
		errors.Is(b.reqCtx.Err(), context.DeadlineExceeded) && b.parent.Err() == nil {
		return n, &Error{Kind: KindTimeout, URL: b.url, Timeout: b.timeout, Err: context.DeadlineExceeded}
	}
	return n, err
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// BodyError classifies a failed read of a response body. Deadline failures
// keep their timeout kind; anything else is a transport failure.
func BodyError(url string, err error) error {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &Error{Kind: KindTransport, URL: url, Err: fmt.Errorf("read response body: %w", err)}
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
