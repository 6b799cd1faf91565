package geosphere

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/geosphere-warnings/internal/domain"
)

const userAgent = "geosphere-warnings/1.0"

// Client fetches warnings for a coordinate from the GeoSphere warning API.
// It implements coordinator.Fetcher.
type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a warnings client. httpClient is shared with the rest of
// the process and is never closed or reconfigured here; timeout bounds each
// request individually.
func NewClient(httpClient *http.Client, endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		timeout:    timeout,
		logger:     logger,
	}
}

// Fetch returns the raw JSON payload for the given coordinate and warning type.
// Failures are *domain.TimeoutError or *domain.TransportError.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, warningType string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{
		"lat":  {formatCoord(lat)},
		"lon":  {formatCoord(lon)},
		"type": {warningType},
	}
	fullURL := c.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, "request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, "read", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(body, 256)),
		}
	}

	var payload json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.TransportError{Op: "decode", Err: err}
	}

	c.logger.Debug("warnings fetched",
		"lat", lat,
		"lon", lon,
		"type", warningType,
		"bytes", len(body),
	)
	return payload, nil
}

// classify maps a request error to a timeout when the request deadline
// elapsed and to a transport failure otherwise.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.TimeoutError{Timeout: c.timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TimeoutError{Timeout: c.timeout, Err: err}
	}
	return &domain.TransportError{Op: op, Err: err}
}

// formatCoord renders the shortest decimal that round-trips, e.g. 48.2082.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(b []byte, limit int) string {
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
