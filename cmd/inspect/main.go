// Command inspect evaluates a saved warnings payload offline and prints the
// sensor snapshot the service would publish for it. It runs the same
// coordinator and sensor code as the service with a fixed clock, so a
// payload captured from the API can be replayed at any instant.
//
// Usage:
//
//	go run ./cmd/inspect -payload warnings.json -at 2023-11-15T06:00:00Z
//	curl -s 'https://warnapi.geosphere.at/v1/warnings/coords?lat=48.2&lon=16.37' | go run ./cmd/inspect
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geosphere-warnings/internal/coordinator"
	"github.com/couchcryptid/geosphere-warnings/internal/domain"
	"github.com/couchcryptid/geosphere-warnings/internal/observability"
	"github.com/couchcryptid/geosphere-warnings/internal/sensor"
)

type options struct {
	payloadPath string
	at          time.Time
	policy      domain.WindowPolicy
	lat, lon    float64
	verbose     bool
}

func main() {
	payload := flag.String("payload", "-", "path to a warnings JSON payload, or - for stdin")
	at := flag.String("at", "", "evaluation instant in RFC 3339 (default: now)")
	policy := flag.String("policy", "include", "records without a full time window: include or exclude")
	lat := flag.Float64("lat", 48.2082, "latitude used for the entity ID")
	lon := flag.Float64("lon", 16.3738, "longitude used for the entity ID")
	verbose := flag.Bool("v", false, "log skipped and unparsable records to stderr")
	flag.Parse()

	opts := options{payloadPath: *payload, lat: *lat, lon: *lon, verbose: *verbose, at: time.Now().UTC()}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -at: %v\n", err)
			os.Exit(2)
		}
		opts.at = t
	}
	p, err := domain.ParseWindowPolicy(*policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -policy: %v\n", err)
		os.Exit(2)
	}
	opts.policy = p

	if err := run(context.Background(), opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

// fileFetcher serves a payload read once up front.
type fileFetcher struct {
	payload json.RawMessage
}

func (f fileFetcher) Fetch(context.Context, float64, float64, string) (json.RawMessage, error) {
	return f.payload, nil
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	raw, err := readPayload(opts.payloadPath, stdin)
	if err != nil {
		return err
	}
	if !json.Valid(raw) {
		return errors.New("payload is not valid JSON")
	}

	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	coord := coordinator.New(fileFetcher{payload: raw}, coordinator.Options{
		Latitude:    opts.lat,
		Longitude:   opts.lon,
		WarningType: "EVENT",
		Policy:      opts.policy,
		Clock:       clockwork.NewFakeClockAt(opts.at),
	}, logger, observability.NewMetricsForTesting())

	if err := coord.FirstRefresh(ctx); err != nil {
		return err
	}
	if err := coord.State().LastError; err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sensor.New(coord, opts.lat, opts.lon, "").Snapshot())
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return b, nil
}
