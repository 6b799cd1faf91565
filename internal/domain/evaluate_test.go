package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_MixedPayload(t *testing.T) {
	now := time.Date(2023, 11, 15, 6, 0, 0, 0, time.UTC)
	payload := json.RawMessage(fmt.Sprintf(`{
		"type": "FeatureCollection",
		"features": [
			{"properties": {"id": "active", "headline": "Sturm", "start": %d, "end": %d}},
			{"properties": {"id": "expired", "headline": "Regen", "start": 1600000000000, "end": 1600003600000}},
			{"geometry": {"type": "Point"}},
			{"properties": {"id": "broken", "headline": "Glatteis", "start": "soon", "end": %d}},
			{"properties": {"id": "open", "headline": "Hitze"}}
		]
	}`, testStartMs, testEndMs, testEndMs))

	ev := Evaluate(payload, now, IncludeUnbounded, discardLogger())

	assert.False(t, ev.Malformed)
	assert.Equal(t, 5, ev.Features)
	assert.Equal(t, 1, ev.Skipped)
	assert.Equal(t, 1, ev.ParseErrors)

	require.Len(t, ev.Active, 3)
	ids := []string{*ev.Active[0].ID, *ev.Active[1].ID, *ev.Active[2].ID}
	assert.Equal(t, []string{"active", "broken", "open"}, ids)
}

func TestEvaluate_ExcludeUnbounded(t *testing.T) {
	now := time.Date(2023, 11, 15, 6, 0, 0, 0, time.UTC)
	payload := json.RawMessage(fmt.Sprintf(`{"type":"FeatureCollection","features":[
		{"properties":{"id":"active","start":%d,"end":%d}},
		{"properties":{"id":"open"}}
	]}`, testStartMs, testEndMs))

	ev := Evaluate(payload, now, ExcludeUnbounded, discardLogger())

	require.Len(t, ev.Active, 1)
	assert.Equal(t, "active", *ev.Active[0].ID)
}

func TestEvaluate_Malformed(t *testing.T) {
	ev := Evaluate(json.RawMessage(`{"type": "Other"}`), time.Now(), IncludeUnbounded, discardLogger())

	assert.True(t, ev.Malformed)
	assert.NotNil(t, ev.Active)
	assert.Empty(t, ev.Active)
}
