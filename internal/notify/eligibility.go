package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mr1hm/go-alert-notify/internal/geo"
	"github.com/mr1hm/go-alert-notify/internal/geocode"
	"github.com/mr1hm/go-alert-notify/internal/models"
)

// quietHoursBypassConfidence is the confidence at which an alert pierces a
// configured quiet-hours window. This bypass fires even when the
// subscription's emergency_override flag is false, preserving the observed
// behavior of the system this replaces.
const quietHoursBypassConfidence = 0.95

// Filter decides whether one subscription should be notified about one
// alert. The predicates run in a fixed order and the first failure rejects;
// later predicates assume earlier ones passed.
//
// ShouldNotify is not pure: rate-limit bookkeeping resets the subscription's
// hourly counter when the clock hour has rolled over. Callers must hold the
// subscription's write lock.
type Filter struct {
	geocoder geocode.Geocoder // nil disables location resolution
	stats    *Stats
}

func NewFilter(geocoder geocode.Geocoder, stats *Stats) *Filter {
	return &Filter{
		geocoder: geocoder,
		stats:    stats,
	}
}

// ShouldNotify evaluates the predicate chain at time now. The caller samples
// the clock once per alert so every subscription in a dispatch pass sees the
// same instant.
func (f *Filter) ShouldNotify(ctx context.Context, sub *models.Subscription, alert *models.Alert, now time.Time) bool {
	if !sub.IsActive {
		return false
	}

	if alert.ConfidenceScore < sub.MinConfidence {
		return false
	}

	minRank := sub.MinUrgency.Rank()
	if minRank < 0 {
		minRank = models.UrgencyMedium.Rank()
	}
	if alert.EffectiveUrgency().Rank() < minRank {
		return false
	}

	if len(sub.DisasterTypes) > 0 && !contains(sub.DisasterTypes, alert.DisasterType) {
		return false
	}

	if sub.Latitude != nil && sub.Longitude != nil {
		if lat, lon, ok := f.resolveCoordinates(ctx, alert); ok {
			if geo.DistanceKm(sub.Latitude, sub.Longitude, &lat, &lon) > sub.AlertRadiusKm {
				return false
			}
		}
		// Unresolvable alert coordinates skip the predicate rather than reject.
	}

	if sub.City != "" && alert.Location != "" {
		if !strings.Contains(strings.ToLower(alert.Location), strings.ToLower(sub.City)) {
			return false
		}
	}

	if sub.State != "" && alert.State != "" {
		if !strings.EqualFold(sub.State, alert.State) {
			return false
		}
	}

	if sub.Country != "" && alert.Country != "" {
		if !strings.EqualFold(sub.Country, alert.Country) {
			return false
		}
	}

	if len(sub.AlertLevels) > 0 && !contains(sub.AlertLevels, string(alert.EffectiveLevel())) {
		return false
	}

	// Hourly rate limit, scoped to the wall-clock hour.
	hour := now.Unix() / 3600
	if sub.HourlyWindowStart == hour {
		if sub.HourlyCount >= sub.MaxPerHour {
			if f.stats != nil {
				f.stats.RecordRateLimited()
			}
			return false
		}
	} else {
		sub.HourlyCount = 0
		sub.HourlyWindowStart = hour
	}

	if sub.QuietHours != nil && !sub.EmergencyOverride {
		if inQuietWindow(sub.QuietHours, now) && alert.ConfidenceScore < quietHoursBypassConfidence {
			return false
		}
	}

	return true
}

// resolveCoordinates finds the alert's position: explicit coordinates first,
// then a geocode of its free-text location.
func (f *Filter) resolveCoordinates(ctx context.Context, alert *models.Alert) (lat, lon float64, ok bool) {
	if lat, lon, ok := alert.Coordinates(); ok {
		return lat, lon, true
	}

	if f.geocoder == nil || alert.Location == "" {
		return 0, 0, false
	}

	result, err := f.geocoder.Geocode(ctx, alert.Location)
	if err != nil {
		slog.Warn("geocoding alert location failed", "alert_id", alert.ID, "location", alert.Location, "error", err)
		return 0, 0, false
	}
	if !result.Found {
		return 0, 0, false
	}
	return result.Latitude, result.Longitude, true
}

// inQuietWindow reports whether now's local HH:MM falls inside the [start,
// end) window, wrapping across midnight when start > end.
func inQuietWindow(qh *models.QuietHours, now time.Time) bool {
	start := qh.Start
	if start == "" {
		start = "22:00"
	}
	end := qh.End
	if end == "" {
		end = "06:00"
	}

	current := now.Format("15:04")
	if start <= end {
		return start <= current && current < end
	}
	return current >= start || current < end
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
