package wayback

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
)

var (
	archivedLinkPattern = regexp.MustCompile(`/web/(\d{14})/(https?://[^"'\s<>]+)`)
	timestampPattern    = regexp.MustCompile(`/web/(\d{14})`)
)

// Save asks the archive to capture target now.
func (c *Client) Save(ctx context.Context, in SaveInput, call CallOptions) (*Result, error) {
	target, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, c.baseURL()+"/save/"+target, fetch.Options{Method: http.MethodPost, Backend: call.Backend, NoCache: call.NoCache})
	if err != nil {
		return failure(target, "save failed", err), nil
	}

	archived := c.resolveArchived(resp.header.Get("Content-Location"))
	if archived == "" {
		archived = c.resolveArchived(resp.header.Get("Location"))
	}
	if archived == "" {
		if match := archivedLinkPattern.FindSubmatch(resp.body); match != nil {
			archived = c.archivedURL(string(match[1]), string(match[2]))
		}
	}

	result := &Result{
		Success: true,
		URL:     target,
		JobID:   strings.TrimSpace(resp.header.Get("X-Archive-Wayback-Job-Id")),
	}

	if archived == "" {
		result.Message = "capture requested; the archived URL is not available yet"
		return result, nil
	}

	result.ArchivedURL = archived
	if match := timestampPattern.FindStringSubmatch(archived); match != nil {
		result.Timestamp = match[1]
	}
	result.Message = "capture saved"
	return result, nil
}

// resolveArchived turns a header value into an absolute archived URL. Values
// that do not point into /web/ are ignored.
func (c *Client) resolveArchived(location string) string {
	location = strings.TrimSpace(location)
	if location == "" || !strings.Contains(location, "/web/") {
		return ""
	}

	if strings.HasPrefix(location, "/") {
		return c.baseURL() + location
	}

	parsed, err := url.Parse(location)
	if err != nil || !parsed.IsAbs() {
		return ""
	}
	return location
}
