package sensor

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/geosphere-warnings/internal/coordinator"
)

const (
	// Name is the display name of the warnings entity.
	Name = "Geosphere Weather Warnings"
	// Icon is the Material Design icon shown for the entity.
	Icon = "mdi:alert-outline"
)

// Source is what a Sensor needs from its coordinator.
type Source interface {
	coordinator.Notifier
	State() coordinator.State
	Refresh(ctx context.Context)
}

// Snapshot is the full published view of the entity.
type Snapshot struct {
	UniqueID  string `json:"unique_id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Available bool   `json:"available"`
	Summary
}

// Sensor exposes the active warning count for one coordinate. It never
// fetches on its own; updates arrive from the coordinator.
type Sensor struct {
	source   Source
	uniqueID string
	location string

	mu       sync.Mutex
	token    coordinator.Token
	attached bool
}

// New creates a Sensor for the coordinate served by source. location may be
// empty.
func New(source Source, lat, lon float64, location string) *Sensor {
	return &Sensor{
		source:   source,
		uniqueID: "geosphere_warnings_" + formatDegrees(lat) + "_" + formatDegrees(lon),
		location: location,
	}
}

// UniqueID is stable for a coordinate across restarts.
func (s *Sensor) UniqueID() string { return s.uniqueID }

// Available reports whether any successful fetch has happened.
func (s *Sensor) Available() bool {
	return s.source.State().Data != nil
}

// Snapshot returns the current view.
func (s *Sensor) Snapshot() Snapshot {
	state := s.source.State()
	return Snapshot{
		UniqueID:  s.uniqueID,
		Name:      Name,
		Icon:      Icon,
		Available: state.Data != nil,
		Summary:   Summarize(state, s.location),
	}
}

// Attach subscribes to coordinator updates. onUpdate receives a fresh
// snapshot after every completed refresh. Attaching twice replaces the
// previous subscription.
func (s *Sensor) Attach(onUpdate func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		s.source.Unsubscribe(s.token)
	}
	s.token = s.source.Subscribe(func() { onUpdate(s.Snapshot()) })
	s.attached = true
}

// Detach stops update delivery. It is safe to call when not attached.
func (s *Sensor) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return
	}
	s.source.Unsubscribe(s.token)
	s.attached = false
}

// Update requests a refresh from the coordinator. Concurrent requests share
// a single fetch.
func (s *Sensor) Update(ctx context.Context) {
	s.source.Refresh(ctx)
}

// formatDegrees prints coordinates the way the entity ID has always been
// built: shortest round-trip decimal with at least one fractional digit.
func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
