package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a failed fetch.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindTransport  Kind = "transport"
	KindHTTPStatus Kind = "http-status"
)

// Sentinels matched by *Error through errors.Is.
var (
	ErrTimeout    = errors.New("request timed out")
	ErrTransport  = errors.New("transport failure")
	ErrHTTPStatus = errors.New("unexpected http status")

	ErrConfigInvalid = errors.New("fetch configuration invalid")
)

// Error is returned by Client.Do for every failed request.
//
// Body and Header carry the (possibly truncated) response for KindHTTPStatus.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
	Timeout    time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "fetch error"
	}

	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
	case KindHTTPStatus:
		status := strings.TrimSpace(e.Status)
		if status == "" {
			status = fmt.Sprintf("%d", e.StatusCode)
		}
		return fmt.Sprintf("request to %s failed: HTTP %s", e.URL, status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("request to %s failed", e.URL)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match the package sentinels by kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	}
	return false
}

// StatusCode extracts the HTTP status from a fetch error, or 0.
func StatusCode(err error) int {
	var fetchErr *Error
	if errors.As(err, &fetchErr) && fetchErr.Kind == KindHTTPStatus {
		return fetchErr.StatusCode
	}
	return 0
}

// ConfigInvalidError reports a rejected configuration update.
type ConfigInvalidError struct {
	Reason string
	Err    error
}

func (e *ConfigInvalidError) Error() string {
	if e == nil {
		return ErrConfigInvalid.Error()
	}
	if e.Reason == "" {
		return ErrConfigInvalid.Error()
	}
	return fmt.Sprintf("%s: %s", ErrConfigInvalid.Error(), e.Reason)
}

func (e *ConfigInvalidError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrConfigInvalid}
	}
	return []error{ErrConfigInvalid, e.Err}
}
