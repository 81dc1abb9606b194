package wayback

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetrieveFromAvailability(t *testing.T) {
	var gotTimestamp string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wayback/available", r.URL.Path)
		gotTimestamp = r.URL.Query().Get("timestamp")
		_, _ = w.Write([]byte(`{"url":"example.com","archived_snapshots":{"closest":{"available":true,"url":"http://web.archive.org/web/20230615000000/https://example.com/","timestamp":"20230615000000","status":"200"}}}`))
	})

	result, err := client.Retrieve(context.Background(), RetrieveInput{URL: "https://example.com/", Timestamp: "2023-06-15"}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "20230615", gotTimestamp)
	require.Equal(t, "20230615000000", result.Timestamp)
	require.NotNil(t, result.Available)
	require.True(t, *result.Available)
}

func TestRetrieveFallsBackToCDX(t *testing.T) {
	var cdxQuery map[string][]string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wayback/available":
			_, _ = w.Write([]byte(`{"archived_snapshots":{}}`))
		case "/cdx/search/cdx":
			cdxQuery = r.URL.Query()
			_, _ = w.Write([]byte(`[["timestamp","original","statuscode"],["20200101000000","https://example.com/","200"]]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := client.Retrieve(context.Background(), RetrieveInput{URL: "https://example.com/"}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "-1", cdxQuery["limit"][0])
	require.Equal(t, server.URL+"/web/20200101000000/https://example.com/", result.ArchivedURL)
	require.True(t, *result.Available)
}

func TestRetrieveClosestUsesSortedCDX(t *testing.T) {
	var cdxQuery map[string][]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wayback/available" {
			_, _ = w.Write([]byte(`{"archived_snapshots":{}}`))
			return
		}
		cdxQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[["timestamp","original","statuscode"],["20190505000000","https://example.com/","200"]]`))
	})

	result, err := client.Retrieve(context.Background(), RetrieveInput{URL: "https://example.com/", Timestamp: "20190501"}, CallOptions{})
	require.NoError(t, err)
	require.Equal(t, "20190501", cdxQuery["closest"][0])
	require.Equal(t, "closest", cdxQuery["sort"][0])
	require.Equal(t, "20190505000000", result.Timestamp)
}

func TestRetrieveNothingArchived(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wayback/available" {
			_, _ = w.Write([]byte(`{"archived_snapshots":{}}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	result, err := client.Retrieve(context.Background(), RetrieveInput{URL: "https://never.example/"}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Available)
	require.False(t, *result.Available)
	require.Equal(t, "no archived versions found", result.Message)
}

func TestRetrieveRejectsBadTimestamp(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Retrieve(context.Background(), RetrieveInput{URL: "https://example.com", Timestamp: "last tuesday"}, CallOptions{})
	require.ErrorIs(t, err, ErrInvalidInput)
}
