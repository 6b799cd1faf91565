package domain

import (
	"context"
	"log/slog"
)

// ResolveLocation labels the monitored coordinate with a place name.
// It returns "" when geocoder is nil, the lookup fails, or nothing matches
// (graceful degradation).
func ResolveLocation(ctx context.Context, geocoder Geocoder, lat, lon float64, logger *slog.Logger) string {
	if geocoder == nil {
		return ""
	}

	result, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return ""
	}

	if result.PlaceName != "" {
		return result.PlaceName
	}
	return result.FormattedAddress
}
