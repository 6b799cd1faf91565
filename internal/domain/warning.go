package domain

import (
	"encoding/json"
	"time"
)

// WarningRecord is the normalized form of one warning feature.
// Optional fields are nil when the source omits them.
type WarningRecord struct {
	ID           *string
	Headline     *string
	Description  *string
	Instruction  *string
	TypeCode     *string
	TypeName     *string
	SeverityCode *string
	SeverityName *string
	Urgency      *string
	Certainty    *string

	Start *time.Time // UTC
	End   *time.Time // UTC

	AltitudeStart *float64
	AltitudeEnd   *float64

	// Raw holds every property as received. Numbers are json.Number so
	// millisecond epochs survive re-encoding unchanged.
	Raw map[string]any
}

// Bounded reports whether the record declares both ends of its window.
func (r WarningRecord) Bounded() bool {
	return r.Start != nil && r.End != nil
}

// Label returns a human-readable name for logging.
func (r WarningRecord) Label() string {
	switch {
	case r.Headline != nil:
		return *r.Headline
	case r.ID != nil:
		return *r.ID
	default:
		return ""
	}
}

// FeatureCollection is the validated envelope of a warnings payload.
// Features stay undecoded until Normalize handles them one by one.
type FeatureCollection struct {
	Type     string
	Features []json.RawMessage
}

// Evaluation is the outcome of running a payload through the
// normalize and filter stages.
type Evaluation struct {
	Active []WarningRecord

	Features    int  // features present in the payload
	Skipped     int  // features without usable properties
	ParseErrors int  // records with unusable time fields
	Malformed   bool // payload was not a FeatureCollection
}
