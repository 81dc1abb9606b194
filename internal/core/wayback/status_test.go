package wayback

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusSummarisesCaptures(t *testing.T) {
	var limit string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		limit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[["timestamp","statuscode"],["20190301000000","200"],["20190401000000","200"],["20210101120000","404"]]`))
	})
	client.StatusScanLimit = 500

	result, err := client.Status(context.Background(), StatusInput{URL: "https://example.com/"}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "500", limit)

	require.True(t, *result.IsArchived)
	require.Equal(t, 3, *result.TotalCaptures)
	require.Equal(t, map[string]int{"2019": 2, "2021": 1}, result.YearlyCaptures)

	require.Equal(t, "20190301000000", result.FirstCapture.Timestamp)
	require.Equal(t, "2019-03-01T00:00:00Z", result.FirstCapture.Date)
	require.Equal(t, server.URL+"/web/20190301000000/https://example.com/", result.FirstCapture.ArchivedURL)
	require.Equal(t, "2021-01-01T12:00:00Z", result.LastCapture.Date)
}

func TestStatusNotArchived(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	result, err := client.Status(context.Background(), StatusInput{URL: "https://never.example/"}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, *result.IsArchived)
	require.Equal(t, 0, *result.TotalCaptures)
	require.Nil(t, result.FirstCapture)
}

func TestStatusRemoteFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	result, err := client.Status(context.Background(), StatusInput{URL: "https://example.com/"}, CallOptions{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "503")
}
