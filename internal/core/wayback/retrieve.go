package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type availabilityResponse struct {
	URL               string `json:"url"`
	ArchivedSnapshots struct {
		Closest *struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Retrieve finds the snapshot closest to the requested timestamp, or the
// latest one when no timestamp is given.
func (c *Client) Retrieve(ctx context.Context, in RetrieveInput, call CallOptions) (*Result, error) {
	target, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}
	timestamp, err := NormalizeTimestamp(in.Timestamp)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("url", target)
	if timestamp != "" {
		query.Set("timestamp", timestamp)
	}

	var availabilityErr error
	resp, err := c.get(ctx, c.availabilityURL()+"/wayback/available?"+query.Encode(), call)
	if err != nil {
		availabilityErr = err
	} else {
		var payload availabilityResponse
		if err := json.Unmarshal(resp.body, &payload); err != nil {
			availabilityErr = fmt.Errorf("decode availability response: %w", err)
		} else if closest := payload.ArchivedSnapshots.Closest; closest != nil && closest.Available && closest.URL != "" {
			return &Result{
				Success:     true,
				URL:         target,
				ArchivedURL: closest.URL,
				Timestamp:   closest.Timestamp,
				Available:   boolPtr(true),
				FromCache:   resp.fromCache,
				Message:     "snapshot found",
			}, nil
		}
	}

	snapshot, fromCache, err := c.closestCapture(ctx, target, timestamp, call)
	if err != nil {
		if availabilityErr != nil {
			return failure(target, "lookup failed", availabilityErr), nil
		}
		return failure(target, "lookup failed", err), nil
	}
	if snapshot == nil {
		return &Result{
			Success:   true,
			URL:       target,
			Available: boolPtr(false),
			FromCache: fromCache,
			Message:   "no archived versions found",
		}, nil
	}

	return &Result{
		Success:     true,
		URL:         target,
		ArchivedURL: snapshot.ArchivedURL,
		Timestamp:   snapshot.Timestamp,
		Available:   boolPtr(true),
		FromCache:   fromCache,
		Message:     "snapshot found",
	}, nil
}

// closestCapture asks the CDX index directly, which sometimes knows about
// captures the availability endpoint does not report.
func (c *Client) closestCapture(ctx context.Context, target, timestamp string, call CallOptions) (*Snapshot, bool, error) {
	query := url.Values{}
	query.Set("url", target)
	query.Set("output", "json")
	query.Set("fl", "timestamp,original,statuscode")
	if timestamp == "" {
		query.Set("limit", "-1")
	} else {
		query.Set("closest", timestamp)
		query.Set("sort", "closest")
		query.Set("limit", "1")
	}

	resp, err := c.get(ctx, c.cdxURL(query), call)
	if err != nil {
		return nil, false, err
	}

	rows := parseCDX(resp.body, []string{"timestamp", "original", "statuscode"})
	if len(rows) == 0 {
		return nil, resp.fromCache, nil
	}

	row := rows[len(rows)-1]
	if timestamp != "" {
		row = rows[0]
	}
	ts := strings.TrimSpace(row["timestamp"])
	original := strings.TrimSpace(row["original"])
	if ts == "" || original == "" {
		return nil, resp.fromCache, nil
	}

	return &Snapshot{
		Timestamp:   ts,
		OriginalURL: original,
		ArchivedURL: c.archivedURL(ts, original),
		StatusCode:  row["statuscode"],
		Date:        FormatDate(ts),
	}, resp.fromCache, nil
}

func (c *Client) cdxURL(query url.Values) string {
	return c.baseURL() + "/cdx/search/cdx?" + query.Encode()
}
