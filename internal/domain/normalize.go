package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// Bounds of a representable calendar instant, years 1 through 9999.
	minEpochMillis = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxEpochMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()

	errNotNumeric  = errors.New("not a number")
	errOutOfRange  = errors.New("timestamp out of range")
	errNotAnObject = errors.New("not a JSON object")
)

// ParseFeatureCollection validates the payload envelope and returns its
// undecoded features.
func ParseFeatureCollection(payload json.RawMessage) (FeatureCollection, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope == nil {
		return FeatureCollection{}, &MalformedPayloadError{Reason: "top level is not an object"}
	}

	var typ string
	if raw, ok := envelope["type"]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	if typ != "FeatureCollection" {
		return FeatureCollection{}, &MalformedPayloadError{Reason: fmt.Sprintf("type is %q, want FeatureCollection", typ)}
	}

	rawFeatures, ok := envelope["features"]
	if !ok {
		return FeatureCollection{}, &MalformedPayloadError{Reason: "missing features"}
	}
	var features []json.RawMessage
	if err := json.Unmarshal(rawFeatures, &features); err != nil || features == nil {
		return FeatureCollection{}, &MalformedPayloadError{Reason: "features is not an array"}
	}

	return FeatureCollection{Type: typ, Features: features}, nil
}

// Normalize converts one feature into a WarningRecord.
//
// ok is false when the feature must be skipped: err is then ErrNoProperties
// for a feature without properties, or a *RecordParseError when the feature
// or its properties are not objects. When ok is true a non-nil err reports
// unusable start/end values; both time fields are cleared in that case and
// the record is otherwise complete.
func Normalize(feature json.RawMessage) (rec WarningRecord, ok bool, err error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(feature, &envelope); err != nil || envelope == nil {
		return WarningRecord{}, false, &RecordParseError{Field: "feature", Value: snippet(feature), Err: errNotAnObject}
	}

	rawProps, present := envelope["properties"]
	if !present || isNull(rawProps) {
		return WarningRecord{}, false, ErrNoProperties
	}

	props, err := decodeProperties(rawProps)
	if err != nil {
		return WarningRecord{}, false, &RecordParseError{Field: "properties", Value: snippet(rawProps), Err: err}
	}
	if len(props) == 0 {
		return WarningRecord{}, false, ErrNoProperties
	}

	rec = WarningRecord{
		ID:            stringField(props, "id"),
		Headline:      stringField(props, "headline"),
		Description:   stringField(props, "description"),
		Instruction:   stringField(props, "instruction"),
		TypeCode:      stringField(props, "type"),
		TypeName:      stringField(props, "typeName"),
		SeverityCode:  stringField(props, "severity"),
		SeverityName:  stringField(props, "severityName"),
		Urgency:       stringField(props, "urgency"),
		Certainty:     stringField(props, "certainty"),
		AltitudeStart: floatField(props, "altitudeStart"),
		AltitudeEnd:   floatField(props, "altitudeEnd"),
		Raw:           props,
	}

	start, startErr := epochMillisField(props, "start")
	end, endErr := epochMillisField(props, "end")
	if startErr != nil || endErr != nil {
		return rec, true, errors.Join(startErr, endErr)
	}
	rec.Start = start
	rec.End = end

	return rec, true, nil
}

func decodeProperties(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return nil, errNotAnObject
	}
	return props, nil
}

// stringField accepts strings and numbers; anything else counts as absent.
func stringField(props map[string]any, key string) *string {
	switch v := props[key].(type) {
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	default:
		return nil
	}
}

func floatField(props map[string]any, key string) *float64 {
	var (
		f   float64
		err error
	)
	switch v := props[key].(type) {
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// epochMillisField converts a millisecond epoch. A missing or null value is
// absent, not an error.
func epochMillisField(props map[string]any, key string) (*time.Time, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return nil, nil
	}

	var n json.Number
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return nil, &RecordParseError{Field: key, Value: v, Err: errNotNumeric}
	}

	ts, err := millisToTime(n)
	if err != nil {
		return nil, &RecordParseError{Field: key, Value: v, Err: err}
	}
	return &ts, nil
}

func millisToTime(n json.Number) (time.Time, error) {
	if ms, err := n.Int64(); err == nil {
		if ms < minEpochMillis || ms > maxEpochMillis {
			return time.Time{}, errOutOfRange
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	f, err := n.Float64()
	if err != nil {
		return time.Time{}, errNotNumeric
	}
	if math.IsNaN(f) || f < float64(minEpochMillis) || f > float64(maxEpochMillis) {
		return time.Time{}, errOutOfRange
	}

	// Keep microsecond precision, the resolution of the upstream clients.
	sec, frac := math.Modf(f / 1000)
	micros := int64(math.Round(frac * 1e6))
	return time.Unix(int64(sec), micros*int64(time.Microsecond)).UTC(), nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func snippet(raw json.RawMessage) string {
	const limit = 64
	s := string(bytes.TrimSpace(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
