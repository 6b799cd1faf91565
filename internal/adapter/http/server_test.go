package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/geosphere-warnings/internal/adapter/http"
	"github.com/couchcryptid/geosphere-warnings/internal/coordinator"
	"github.com/couchcryptid/geosphere-warnings/internal/observability"
	"github.com/couchcryptid/geosphere-warnings/internal/sensor"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockSensor struct {
	snap    sensor.Snapshot
	updates int
}

func (m *mockSensor) Snapshot() sensor.Snapshot { return m.snap }

func (m *mockSensor) Update(_ context.Context) {
	m.updates++
	m.snap.Count = m.updates
}

func testSnapshot() sensor.Snapshot {
	return sensor.Snapshot{
		UniqueID:  "geosphere_warnings_48.2082_16.3738",
		Name:      sensor.Name,
		Icon:      sensor.Icon,
		Available: true,
		Summary: sensor.Summary{
			Attributes: sensor.Attributes{
				Attribution:       sensor.Attribution,
				Warnings:          []sensor.WarningAttributes{},
				LastUpdateSuccess: true,
			},
		},
	}
}

func newTestServer(readyErr error, view httpadapter.SensorView, opts httpadapter.Options) *httpadapter.Server {
	opts.Addr = ":0"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(opts, &mockReadiness{err: readyErr}, view, logger)
}

func serve(srv *httpadapter.Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, &mockSensor{}, httpadapter.Options{}), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, &mockSensor{}, httpadapter.Options{}), http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("initial warnings refresh has not completed"), &mockSensor{}, httpadapter.Options{})
	rec := serve(srv, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "initial warnings refresh has not completed", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, &mockSensor{}, httpadapter.Options{}), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSensorEndpoint(t *testing.T) {
	view := &mockSensor{snap: testSnapshot()}
	rec := serve(newTestServer(nil, view, httpadapter.Options{}), http.MethodGet, "/api/v1/sensor")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"unique_id": "geosphere_warnings_48.2082_16.3738",
		"name": "Geosphere Weather Warnings",
		"icon": "mdi:alert-outline",
		"available": true,
		"state": 0,
		"attributes": {
			"attribution": "Data provided by GeoSphere Austria",
			"warnings": [],
			"last_update_success": true,
			"last_updated": null
		}
	}`, rec.Body.String())
	assert.Equal(t, 0, view.updates, "reading the sensor never fetches")
}

func TestSensorEndpointReturns503WhenNotReady(t *testing.T) {
	view := &mockSensor{snap: testSnapshot()}
	srv := newTestServer(fmt.Errorf("initial warnings refresh has not completed"), view, httpadapter.Options{})
	rec := serve(srv, http.MethodGet, "/api/v1/sensor")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) Fetch(context.Context, float64, float64, string) (json.RawMessage, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-f.release
	return json.RawMessage(`{"type":"FeatureCollection","features":[{"properties":{"id":"w-1"}}]}`), nil
}

func TestSensorEndpointWaitsForFirstRefresh(t *testing.T) {
	f := &gatedFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := coordinator.New(f, coordinator.Options{
		Latitude:    48.2082,
		Longitude:   16.3738,
		WarningType: "EVENT",
	}, logger, observability.NewMetricsForTesting())
	entity := sensor.New(coord, 48.2082, 16.3738, "")
	srv := httpadapter.NewServer(httpadapter.Options{Addr: ":0"}, coord, entity, logger)

	firstDone := make(chan error, 1)
	go func() { firstDone <- coord.FirstRefresh(context.Background()) }()
	<-f.started

	rec := serve(srv, http.MethodGet, "/api/v1/sensor")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no empty result while the first fetch is in flight")
	assert.NotContains(t, rec.Body.String(), `"state"`)

	close(f.release)
	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh did not complete")
	}

	rec = serve(srv, http.MethodGet, "/api/v1/sensor")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap sensor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Available)
	assert.Equal(t, 1, snap.Count)
}

func TestRefreshEndpoint(t *testing.T) {
	view := &mockSensor{snap: testSnapshot()}
	rec := serve(newTestServer(nil, view, httpadapter.Options{RefreshPerMinute: 6}), http.MethodPost, "/api/v1/refresh")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, view.updates)

	var snap sensor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Count)
}

// deadlineSensor records how long the handler is willing to wait.
type deadlineSensor struct {
	mockSensor
	remaining time.Duration
}

func (d *deadlineSensor) Update(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		d.remaining = time.Until(deadline)
	}
}

func TestRefreshEndpointOutlastsFetchTimeout(t *testing.T) {
	view := &deadlineSensor{mockSensor: mockSensor{snap: testSnapshot()}}
	rec := serve(newTestServer(nil, view, httpadapter.Options{FetchTimeout: 200 * time.Millisecond}), http.MethodPost, "/api/v1/refresh")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, view.remaining, 200*time.Millisecond,
		"handler must wait past the fetch deadline so a timed-out refresh is stored before responding")
}

func TestRefreshEndpointRejectsGet(t *testing.T) {
	view := &mockSensor{}
	rec := serve(newTestServer(nil, view, httpadapter.Options{}), http.MethodGet, "/api/v1/refresh")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, view.updates)
}

func TestRefreshEndpointThrottles(t *testing.T) {
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_rejected_total"})
	view := &mockSensor{snap: testSnapshot()}
	srv := newTestServer(nil, view, httpadapter.Options{RefreshPerMinute: 2, Rejected: rejected})

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodPost, "/api/v1/refresh").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodPost, "/api/v1/refresh").Code)

	rec := serve(srv, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, view.updates)
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected))
}
