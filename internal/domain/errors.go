package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoProperties marks a feature that carries no properties object.
var ErrNoProperties = errors.New("feature has no properties")

// TransportError reports a network, HTTP status, or body decoding failure.
type TransportError struct {
	Op         string // "request", "status", "read", "decode"
	StatusCode int    // set when Op is "status"
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("warnings api %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("warnings api %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports a fetch that did not finish within its bound.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("warnings api timed out after %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// MalformedPayloadError reports a payload that is valid JSON but not the
// expected FeatureCollection shape.
type MalformedPayloadError struct {
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return "malformed warnings payload: " + e.Reason
}

// RecordParseError reports a field of a single feature that could not be
// converted. It never fails the whole payload.
type RecordParseError struct {
	Field string
	Value any
	Err   error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("parse %s (%v): %v", e.Field, e.Value, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }
