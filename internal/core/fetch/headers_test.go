package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeHeadersPrecedence(t *testing.T) {
	merged := MergeHeaders(
		Headers{"X-A": "1"},
		"UA1",
		Headers{"X-A": "2", "User-Agent": "UA2"},
	)

	require.Equal(t, Headers{"X-A": "2", "User-Agent": "UA2"}, merged)
}

func TestMergeHeadersCaseInsensitiveCollision(t *testing.T) {
	merged := MergeHeaders(
		Headers{"Accept": "text/html"},
		"UA1",
		Headers{"accept": "application/json", "user-agent": "UA2"},
	)

	require.Len(t, merged, 2)
	require.Equal(t, "application/json", merged["accept"])
	require.Equal(t, "UA2", merged.Get("User-Agent"))
}

func TestMergeHeadersKeepsDefaultsWithoutOverride(t *testing.T) {
	merged := MergeHeaders(Headers{"X-Trace": "abc"}, "UA1", nil)
	require.Equal(t, Headers{"X-Trace": "abc", "User-Agent": "UA1"}, merged)
}

func TestHeadersFromShapes(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want Headers
	}{
		{"plain map", map[string]string{"X-A": "1"}, Headers{"X-A": "1"}},
		{"http header", http.Header{"X-A": []string{"1", "2"}}, Headers{"X-A": "1, 2"}},
		{"multi map", map[string][]string{"x-b": {"3"}}, Headers{"x-b": "3"}},
		{"decoded json", map[string]any{"X-C": "4", "X-D": []any{"5", 6}}, Headers{"X-C": "4", "X-D": "5, 6"}},
		{"pairs", [][2]string{{"X-E", "7"}, {"x-e", "8"}}, Headers{"x-e": "8"}},
		{"lines", []string{"X-F: 9", "garbage"}, Headers{"X-F": "9"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HeadersFrom(tc.src))
		})
	}

	require.Nil(t, HeadersFrom(42))
	require.Nil(t, HeadersFrom(nil))
}

func TestHeadersHTTPHeaderCanonicalizes(t *testing.T) {
	header := Headers{"x-a": "1", "user-agent": "UA"}.HTTPHeader()
	require.Equal(t, "1", header.Get("X-A"))
	require.Equal(t, []string{"UA"}, header["User-Agent"])
}
