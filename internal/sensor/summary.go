package sensor

import (
	"fmt"
	"time"

	"github.com/couchcryptid/geosphere-warnings/internal/coordinator"
	"github.com/couchcryptid/geosphere-warnings/internal/domain"
)

// Attribution credits the data provider on every snapshot.
const Attribution = "Data provided by GeoSphere Austria"

const isoLayout = "2006-01-02T15:04:05"

// Summary is the presentation of one coordinator state.
type Summary struct {
	Count      int        `json:"state"`
	Attributes Attributes `json:"attributes"`
}

// Attributes are the extra state attributes published alongside the count.
type Attributes struct {
	Attribution       string              `json:"attribution"`
	Warnings          []WarningAttributes `json:"warnings"`
	LastUpdateSuccess bool                `json:"last_update_success"`
	LastUpdated       *string             `json:"last_updated"`
	Location          string              `json:"location,omitempty"`
}

// WarningAttributes describes a single active warning.
type WarningAttributes struct {
	ID            *string        `json:"id"`
	Headline      *string        `json:"headline"`
	Description   *string        `json:"description"`
	Instruction   *string        `json:"instruction"`
	Type          *string        `json:"type"`
	TypeName      *string        `json:"type_name"`
	Severity      *string        `json:"severity"`
	SeverityName  *string        `json:"severity_name"`
	Urgency       *string        `json:"urgency"`
	Certainty     *string        `json:"certainty"`
	StartTime     *string        `json:"start_time"`
	EndTime       *string        `json:"end_time"`
	AltitudeStart *float64       `json:"altitude_start"`
	AltitudeEnd   *float64       `json:"altitude_end"`
	RawData       map[string]any `json:"raw_data"`
}

// Summarize renders state for display. It has no side effects.
func Summarize(state coordinator.State, location string) Summary {
	attrs := Attributes{
		Attribution:       Attribution,
		Warnings:          []WarningAttributes{},
		LastUpdateSuccess: state.LastUpdateSuccess,
		Location:          location,
	}

	if state.Data == nil {
		return Summary{Attributes: attrs}
	}

	for _, rec := range state.Data.ActiveWarnings {
		attrs.Warnings = append(attrs.Warnings, warningAttributes(rec))
	}
	attrs.LastUpdated = FormatTime(&state.Data.FetchedAt)

	return Summary{
		Count:      len(state.Data.ActiveWarnings),
		Attributes: attrs,
	}
}

func warningAttributes(rec domain.WarningRecord) WarningAttributes {
	return WarningAttributes{
		ID:            rec.ID,
		Headline:      rec.Headline,
		Description:   rec.Description,
		Instruction:   rec.Instruction,
		Type:          rec.TypeCode,
		TypeName:      rec.TypeName,
		Severity:      rec.SeverityCode,
		SeverityName:  rec.SeverityName,
		Urgency:       rec.Urgency,
		Certainty:     rec.Certainty,
		StartTime:     FormatTime(rec.Start),
		EndTime:       FormatTime(rec.End),
		AltitudeStart: rec.AltitudeStart,
		AltitudeEnd:   rec.AltitudeEnd,
		RawData:       rec.Raw,
	}
}

// FormatTime renders t as a naive UTC ISO-8601 timestamp, for example
// 2023-11-14T22:13:20. Microseconds are appended only when non-zero.
// A nil or zero t yields nil.
func FormatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	s := u.Format(isoLayout)
	if us := u.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return &s
}
