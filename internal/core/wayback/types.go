package wayback

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidInput marks arguments rejected before any network activity.
var ErrInvalidInput = errors.New("invalid input")

// Result is the outcome of a domain operation. Remote failures are reported
// with Success=false and a Message rather than as Go errors.
type Result struct {
	Success   bool   `json:"success" yaml:"success"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	FromCache bool   `json:"from_cache,omitempty" yaml:"from_cache,omitempty"`

	// save and retrieve
	ArchivedURL string `json:"archived_url,omitempty" yaml:"archived_url,omitempty"`
	Timestamp   string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	JobID       string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Available   *bool  `json:"available,omitempty" yaml:"available,omitempty"`

	// search
	Results      []Snapshot `json:"results,omitempty" yaml:"results,omitempty"`
	TotalResults *int       `json:"total_results,omitempty" yaml:"total_results,omitempty"`

	// status
	IsArchived     *bool          `json:"is_archived,omitempty" yaml:"is_archived,omitempty"`
	TotalCaptures  *int           `json:"total_captures,omitempty" yaml:"total_captures,omitempty"`
	FirstCapture   *Capture       `json:"first_capture,omitempty" yaml:"first_capture,omitempty"`
	LastCapture    *Capture       `json:"last_capture,omitempty" yaml:"last_capture,omitempty"`
	YearlyCaptures map[string]int `json:"yearly_captures,omitempty" yaml:"yearly_captures,omitempty"`
}

// Snapshot is one CDX row.
type Snapshot struct {
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	OriginalURL string `json:"original_url" yaml:"original_url"`
	ArchivedURL string `json:"archived_url" yaml:"archived_url"`
	MimeType    string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	StatusCode  string `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Digest      string `json:"digest,omitempty" yaml:"digest,omitempty"`
	Length      string `json:"length,omitempty" yaml:"length,omitempty"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
}

// Capture identifies a single snapshot in a status report.
type Capture struct {
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	Date        string `json:"date" yaml:"date"`
	ArchivedURL string `json:"archived_url" yaml:"archived_url"`
}

// SaveInput are the arguments of save_url.
type SaveInput struct {
	URL string `mapstructure:"url"`
}

// RetrieveInput are the arguments of get_archived_url.
type RetrieveInput struct {
	URL       string `mapstructure:"url"`
	Timestamp string `mapstructure:"timestamp"`
}

// SearchInput are the arguments of search_archives.
type SearchInput struct {
	URL       string `mapstructure:"url"`
	From      string `mapstructure:"from"`
	To        string `mapstructure:"to"`
	Limit     int    `mapstructure:"limit"`
	MatchType string `mapstructure:"match_type"`
}

// StatusInput are the arguments of check_archive_status.
type StatusInput struct {
	URL string `mapstructure:"url"`
}

// Search bounds.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 1000
)

// MatchTypes lists the accepted CDX match types.
var MatchTypes = []string{"exact", "prefix", "host", "domain"}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidInput)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", ErrInvalidInput, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: url %q must use http or https", ErrInvalidInput, raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: url %q has no host", ErrInvalidInput, raw)
	}
	return raw, nil
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
