package geosphere

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geosphere-warnings/internal/domain"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	samplePayload     = `{"type":"FeatureCollection","features":[{"properties":{"id":"w-1","start":1700000000000,"end":1700086400000}}]}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(endpoint string, timeout time.Duration) *Client {
	return NewClient(&http.Client{}, endpoint, timeout, discardLogger())
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/warnings/coords", r.URL.Path)
		assert.Equal(t, "48.2082", r.URL.Query().Get("lat"))
		assert.Equal(t, "16.3738", r.URL.Query().Get("lon"))
		assert.Equal(t, "EVENT", r.URL.Query().Get("type"))
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/v1/warnings/coords", 5*time.Second)
	payload, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")
	require.NoError(t, err)
	assert.JSONEq(t, samplePayload, string(payload))
}

func TestClient_Fetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "status", te.Op)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Fetch_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "text/html")
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "decode", te.Op)
}

func TestClient_Fetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := testClient(endpoint, 5*time.Second)
	_, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "request", te.Op)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.Fetch(context.Background(), 48.2082, 16.3738, "EVENT")

	var te *domain.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
}

func TestFormatCoord(t *testing.T) {
	assert.Equal(t, "48.2082", formatCoord(48.2082))
	assert.Equal(t, "16", formatCoord(16))
	assert.Equal(t, "-0.5", formatCoord(-0.5))
}
