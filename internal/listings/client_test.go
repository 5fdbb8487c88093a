package listings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetBestListings_RequestShape(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("X-API-KEY")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"listings":[],"next":""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", testLogger())
	_, err := client.GetBestListings(context.Background(), "cool-cats", "cursor-3")
	require.NoError(t, err)

	assert.Equal(t, "/listings/collection/cool-cats/best", gotPath)
	assert.Contains(t, gotQuery, "limit=100")
	assert.Contains(t, gotQuery, "next=cursor-3")
	assert.Equal(t, "secret-key", gotAPIKey)
}

func TestGetBestListings_OmitsCursorOnFirstPage(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"listings":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	_, err := client.GetBestListings(context.Background(), "cool-cats", "")
	require.NoError(t, err)

	assert.NotContains(t, gotQuery, "next=")
}

func TestGetBestListings_DecodesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"listings": [
				{"order_hash": "0xabc", "chain": "ethereum", "protocol_data": {"contract": "0xc"}, "price": {"value": "1000"}},
				{"order_hash": "0xdef", "chain": "ethereum", "protocol_data": {"contract": "0xc"}, "price": {"value": "2000"}}
			],
			"next": "cursor-2"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	page, err := client.GetBestListings(context.Background(), "cool-cats", "")
	require.NoError(t, err)

	require.Len(t, page.Listings, 2)
	assert.Equal(t, "0xabc", page.Listings[0].OrderHash)
	assert.JSONEq(t, `{"contract": "0xc"}`, string(page.Listings[0].ProtocolData))
	assert.Equal(t, "cursor-2", page.Next)
}

func TestGetBestListings_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "bad key"},
		{name: "not found", status: http.StatusNotFound, body: "no such collection"},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "", testLogger())
			_, err := client.GetBestListings(context.Background(), "cool-cats", "")
			require.Error(t, err)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.body, statusErr.Body)
		})
	}
}

func TestGetBestListings_TruncatesLongErrorBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	_, err := client.GetBestListings(context.Background(), "cool-cats", "")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Len(t, statusErr.Body, 512)
}
