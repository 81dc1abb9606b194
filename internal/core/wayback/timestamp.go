package wayback

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the 14-digit capture timestamp used throughout the archive.
const TimestampLayout = "20060102150405"

var digitsPattern = regexp.MustCompile(`^\d{4,14}$`)

// NormalizeTimestamp converts user input into an archive timestamp prefix.
// It accepts "latest" (returned as ""), a digit prefix of YYYYMMDDhhmmss,
// YYYY-MM-DD, and RFC 3339 date-times.
func NormalizeTimestamp(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "latest") {
		return "", nil
	}

	if digitsPattern.MatchString(raw) {
		return raw, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "2006-01"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			ts := parsed.UTC().Format(TimestampLayout)
			switch layout {
			case "2006-01-02":
				return ts[:8], nil
			case "2006-01":
				return ts[:6], nil
			}
			return ts, nil
		}
	}

	return "", fmt.Errorf("%w: timestamp %q must be YYYYMMDDhhmmss, a prefix of it, YYYY-MM-DD or \"latest\"", ErrInvalidInput, raw)
}

// ParseTimestamp reads a full or partial archive timestamp as the earliest
// instant the prefix matches.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if !digitsPattern.MatchString(ts) {
		return time.Time{}, fmt.Errorf("invalid archive timestamp %q", ts)
	}

	return time.Parse(TimestampLayout, earliestTimestamp(ts))
}

// earliestTimestamp extends a digit prefix to the earliest 14-digit timestamp
// it can denote. A partial component is completed with zeros, and a month or
// day that ends up as 00 becomes 01.
func earliestTimestamp(prefix string) string {
	padded := []byte(prefix + strings.Repeat("0", len(TimestampLayout)-len(prefix)))
	for _, start := range []int{4, 6} {
		if padded[start] == '0' && padded[start+1] == '0' {
			padded[start+1] = '1'
		}
	}
	return string(padded)
}

// FormatDate renders an archive timestamp as RFC 3339, or "" when unparseable.
func FormatDate(ts string) string {
	parsed, err := ParseTimestamp(ts)
	if err != nil {
		return ""
	}
	return parsed.UTC().Format(time.RFC3339)
}
