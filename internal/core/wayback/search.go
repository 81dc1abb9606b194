package wayback

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var searchFields = []string{"urlkey", "timestamp", "original", "mimetype", "statuscode", "digest", "length"}

// Search lists captures of target from the CDX index.
func (c *Client) Search(ctx context.Context, in SearchInput, call CallOptions) (*Result, error) {
	target, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}

	from, err := NormalizeTimestamp(in.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := NormalizeTimestamp(in.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if from != "" && to != "" && padTimestamp(from) > padTimestamp(to) {
		return nil, fmt.Errorf("%w: from %q is after to %q", ErrInvalidInput, in.From, in.To)
	}

	limit := in.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxSearchLimit)
	}

	matchType := strings.ToLower(strings.TrimSpace(in.MatchType))
	if matchType == "" {
		matchType = "exact"
	}
	if !validMatchType(matchType) {
		return nil, fmt.Errorf("%w: match_type must be one of %s", ErrInvalidInput, strings.Join(MatchTypes, ", "))
	}

	query := url.Values{}
	query.Set("url", target)
	query.Set("output", "json")
	query.Set("fl", strings.Join(searchFields, ","))
	query.Set("limit", strconv.Itoa(limit))
	if matchType != "exact" {
		query.Set("matchType", matchType)
	}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}

	resp, err := c.get(ctx, c.cdxURL(query), call)
	if err != nil {
		return failure(target, "search failed", err), nil
	}

	rows := parseCDX(resp.body, searchFields)
	snapshots := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		ts := row["timestamp"]
		original := row["original"]
		if ts == "" || original == "" {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Timestamp:   ts,
			OriginalURL: original,
			ArchivedURL: c.archivedURL(ts, original),
			MimeType:    row["mimetype"],
			StatusCode:  row["statuscode"],
			Digest:      row["digest"],
			Length:      row["length"],
			Date:        FormatDate(ts),
		})
		if len(snapshots) == limit {
			break
		}
	}

	result := &Result{
		Success:      true,
		URL:          target,
		Results:      snapshots,
		TotalResults: intPtr(len(snapshots)),
		FromCache:    resp.fromCache,
	}
	if len(snapshots) == 0 {
		result.Message = "no captures matched"
	} else {
		result.Message = fmt.Sprintf("found %d captures", len(snapshots))
	}
	return result, nil
}

func validMatchType(matchType string) bool {
	for _, candidate := range MatchTypes {
		if candidate == matchType {
			return true
		}
	}
	return false
}

func padTimestamp(ts string) string {
	return ts + strings.Repeat("0", len(TimestampLayout)-len(ts))
}
