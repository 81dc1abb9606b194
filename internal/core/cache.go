package core

import (
	"context"
	"net/http"
	"time"
)

// CachedResponse is a fully buffered HTTP response held by a cache backend.
type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Size returns the number of body bytes the entry accounts for.
func (c *CachedResponse) Size() int64 {
	if c == nil {
		return 0
	}
	return int64(len(c.Body))
}

// ResponseCache stores buffered responses by request key.
//
// Get returns (nil, nil) on a miss or an expired entry.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
	Clear(ctx context.Context) error
}
