package domain

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// WindowPolicy decides whether a record without a complete time window
// counts as active.
type WindowPolicy int

const (
	// IncludeUnbounded treats records missing start or end as active.
	IncludeUnbounded WindowPolicy = iota
	// ExcludeUnbounded treats records missing start or end as inactive.
	ExcludeUnbounded
)

func (p WindowPolicy) String() string {
	switch p {
	case IncludeUnbounded:
		return "include"
	case ExcludeUnbounded:
		return "exclude"
	default:
		return fmt.Sprintf("WindowPolicy(%d)", int(p))
	}
}

// ParseWindowPolicy accepts "include" or "exclude", case-insensitively.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "include":
		return IncludeUnbounded, nil
	case "exclude":
		return ExcludeUnbounded, nil
	default:
		return 0, fmt.Errorf("unknown window policy %q", s)
	}
}

// IsActive reports whether rec is in effect at now. Both bounds are
// inclusive, so an inverted window (start after end) is never active.
func IsActive(rec WarningRecord, now time.Time, policy WindowPolicy) bool {
	if !rec.Bounded() {
		return policy == IncludeUnbounded
	}
	now = now.UTC()
	return !now.Before(*rec.Start) && !now.After(*rec.End)
}

// FilterActive returns the records active at now, preserving order.
func FilterActive(records []WarningRecord, now time.Time, policy WindowPolicy, logger *slog.Logger) []WarningRecord {
	now = now.UTC()
	active := make([]WarningRecord, 0, len(records))

	for _, rec := range records {
		if IsActive(rec, now, policy) {
			if !rec.Bounded() {
				logger.Warn("warning without start/end time included by default",
					"warning", rec.Label(),
					"policy", policy.String(),
				)
			}
			active = append(active, rec)
			continue
		}

		if !rec.Bounded() {
			logger.Debug("warning without start/end time excluded",
				"warning", rec.Label(),
				"policy", policy.String(),
			)
			continue
		}
		if rec.Start.After(*rec.End) {
			logger.Debug("warning has inverted time window", "warning", rec.Label(),
				"start", *rec.Start, "end", *rec.End)
			continue
		}
		logger.Debug("warning not currently active",
			"warning", rec.Label(),
			"now", now,
			"start", *rec.Start,
			"end", *rec.End,
		)
	}

	return active
}
