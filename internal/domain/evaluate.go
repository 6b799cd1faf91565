package domain

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Evaluate parses a fetched payload, normalizes each feature, and keeps the
// records active at now. A malformed payload yields no active warnings.
func Evaluate(payload json.RawMessage, now time.Time, policy WindowPolicy, logger *slog.Logger) Evaluation {
	fc, err := ParseFeatureCollection(payload)
	if err != nil {
		logger.Warn("unexpected warnings payload, reporting no active warnings",
			"error", err,
			"payload", snippet(payload),
		)
		return Evaluation{Active: []WarningRecord{}, Malformed: true}
	}

	ev := Evaluation{Features: len(fc.Features)}
	records := make([]WarningRecord, 0, len(fc.Features))

	for i, feature := range fc.Features {
		rec, ok, err := Normalize(feature)
		if !ok {
			ev.Skipped++
			if errors.Is(err, ErrNoProperties) {
				logger.Debug("feature without properties skipped", "index", i)
			} else {
				logger.Warn("feature skipped", "index", i, "error", err)
			}
			continue
		}
		if err != nil {
			ev.ParseErrors++
			logger.Error("convert warning timestamps",
				"warning", rec.Label(),
				"error", err,
			)
		}
		records = append(records, rec)
	}

	ev.Active = FilterActive(records, now, policy, logger)
	return ev
}
