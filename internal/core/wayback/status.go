package wayback

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

var statusFields = []string{"timestamp", "statuscode"}

// Status summarises how much of target the archive holds. At most
// StatusScanLimit captures are inspected.
func (c *Client) Status(ctx context.Context, in StatusInput, call CallOptions) (*Result, error) {
	target, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}

	scanLimit := c.statusScanLimit()

	query := url.Values{}
	query.Set("url", target)
	query.Set("output", "json")
	query.Set("fl", "timestamp,statuscode")
	query.Set("limit", strconv.Itoa(scanLimit))

	resp, err := c.get(ctx, c.cdxURL(query), call)
	if err != nil {
		return failure(target, "status check failed", err), nil
	}

	var (
		count  int
		first  string
		last   string
		yearly = map[string]int{}
	)
	for _, row := range parseCDX(resp.body, statusFields) {
		ts := row["timestamp"]
		if len(ts) < 4 {
			continue
		}
		count++
		if first == "" || ts < first {
			first = ts
		}
		if ts > last {
			last = ts
		}
		yearly[ts[:4]]++
	}

	if count == 0 {
		return &Result{
			Success:       true,
			URL:           target,
			IsArchived:    boolPtr(false),
			TotalCaptures: intPtr(0),
			FromCache:     resp.fromCache,
			Message:       "no archived versions found",
		}, nil
	}

	message := fmt.Sprintf("%d captures between %s and %s", count, FormatDate(first), FormatDate(last))
	if count >= scanLimit {
		message = fmt.Sprintf("at least %d captures (scan limit reached)", count)
	}

	return &Result{
		Success:        true,
		URL:            target,
		IsArchived:     boolPtr(true),
		TotalCaptures:  intPtr(count),
		FirstCapture:   c.capture(first, target),
		LastCapture:    c.capture(last, target),
		YearlyCaptures: yearly,
		FromCache:      resp.fromCache,
		Message:        message,
	}, nil
}

func (c *Client) capture(ts, target string) *Capture {
	return &Capture{
		Timestamp:   ts,
		Date:        FormatDate(ts),
		ArchivedURL: c.archivedURL(ts, target),
	}
}
