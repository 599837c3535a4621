package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-alert-notify/internal/geocode"
	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/observability"
)

type stubGeocoder struct {
	result geocode.Result
	err    error
	calls  int
}

func (s *stubGeocoder) Geocode(ctx context.Context, query string) (geocode.Result, error) {
	s.calls++
	return s.result, s.err
}

func baseSubscription() *models.Subscription {
	return models.NewSubscription("sub-1", "Asha", models.ContactEmail, "asha@example.com",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func baseAlert() *models.Alert {
	return &models.Alert{
		ID:              "alert-1",
		Platform:        "twitter",
		Content:         "water level rising rapidly",
		Timestamp:       time.Date(2026, 3, 2, 11, 55, 0, 0, time.UTC),
		DisasterType:    "flood",
		ConfidenceScore: 0.9,
		IsGenuine:       true,
		Location:        "Mumbai, Maharashtra",
	}
}

var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newFilter() *Filter {
	return NewFilter(nil, NewStats(observability.NewMetricsForTesting()))
}

func TestShouldNotify_Baseline(t *testing.T) {
	assert.True(t, newFilter().ShouldNotify(context.Background(), baseSubscription(), baseAlert(), noon))
}

func TestShouldNotify_InactiveRejected(t *testing.T) {
	sub := baseSubscription()
	sub.IsActive = false
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))
}

func TestShouldNotify_ConfidenceFloor(t *testing.T) {
	sub := baseSubscription()
	sub.MinConfidence = 0.95
	alert := baseAlert()
	alert.ConfidenceScore = 0.9
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))

	alert.ConfidenceScore = 0.95
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_UrgencyFloor(t *testing.T) {
	sub := baseSubscription()
	sub.MinUrgency = models.UrgencyHigh

	// 0.9 confidence derives medium urgency.
	alert := baseAlert()
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))

	alert.ConfidenceScore = 0.95
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))

	// An explicit urgency wins over the derived one.
	alert.ConfidenceScore = 0.9
	alert.Urgency = models.UrgencyCritical
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_DisasterTypeFilter(t *testing.T) {
	sub := baseSubscription()
	sub.DisasterTypes = []string{"earthquake", "cyclone"}
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))

	sub.DisasterTypes = []string{"flood"}
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))

	// Empty list means all types.
	sub.DisasterTypes = nil
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))
}

func TestShouldNotify_RadiusFilter(t *testing.T) {
	lat, lon := 0.0, 0.0
	sub := baseSubscription()
	sub.Latitude = &lat
	sub.Longitude = &lon
	sub.AlertRadiusKm = 10

	// One degree of longitude at the equator is about 111 km away.
	far := baseAlert()
	farLat, farLon := 0.0, 1.0
	far.Latitude = &farLat
	far.Longitude = &farLon
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, far, noon))

	near := baseAlert()
	nearLat, nearLon := 0.0, 0.05
	near.Latitude = &nearLat
	near.Longitude = &nearLon
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, near, noon))
}

func TestShouldNotify_GeocodedLocation(t *testing.T) {
	lat, lon := 0.0, 0.0
	sub := baseSubscription()
	sub.Latitude = &lat
	sub.Longitude = &lon
	sub.AlertRadiusKm = 10

	alert := baseAlert() // no explicit coordinates

	geocoder := &stubGeocoder{result: geocode.Result{Latitude: 0, Longitude: 1, Found: true}}
	filter := NewFilter(geocoder, NewStats(observability.NewMetricsForTesting()))
	assert.False(t, filter.ShouldNotify(context.Background(), sub, alert, noon))
	assert.Equal(t, 1, geocoder.calls)

	// A failed or empty geocode skips the proximity check instead of
	// rejecting.
	filter = NewFilter(&stubGeocoder{err: errors.New("down")}, NewStats(observability.NewMetricsForTesting()))
	assert.True(t, filter.ShouldNotify(context.Background(), sub, alert, noon))

	filter = NewFilter(&stubGeocoder{result: geocode.Result{Found: false}}, NewStats(observability.NewMetricsForTesting()))
	assert.True(t, filter.ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_CitySubstring(t *testing.T) {
	sub := baseSubscription()
	sub.City = "mumbai"
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))

	sub.City = "Delhi"
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))

	// No alert location skips the check.
	alert := baseAlert()
	alert.Location = ""
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_StateAndCountry(t *testing.T) {
	sub := baseSubscription()
	sub.State = "Maharashtra"
	sub.Country = "India"

	alert := baseAlert()
	alert.State = "maharashtra"
	alert.Country = "INDIA"
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))

	alert.State = "Kerala"
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))

	alert.State = ""
	alert.Country = "Japan"
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_AlertLevelFilter(t *testing.T) {
	sub := baseSubscription()
	sub.AlertLevels = []string{"emergency"}

	// 0.9 confidence derives level "alert".
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, baseAlert(), noon))

	alert := baseAlert()
	alert.ConfidenceScore = 0.95
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_HourlyRateLimit(t *testing.T) {
	stats := NewStats(observability.NewMetricsForTesting())
	filter := NewFilter(nil, stats)

	sub := baseSubscription()
	sub.MaxPerHour = 1
	sub.HourlyWindowStart = noon.Unix() / 3600
	sub.HourlyCount = 1

	assert.False(t, filter.ShouldNotify(context.Background(), sub, baseAlert(), noon))
	assert.Equal(t, int64(1), stats.Snapshot().RateLimited)

	// The next wall-clock hour resets the window.
	later := noon.Add(time.Hour)
	require.True(t, filter.ShouldNotify(context.Background(), sub, baseAlert(), later))
	assert.Equal(t, 0, sub.HourlyCount)
	assert.Equal(t, later.Unix()/3600, sub.HourlyWindowStart)
}

func TestShouldNotify_QuietHours(t *testing.T) {
	lateNight := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)

	sub := baseSubscription()
	sub.QuietHours = &models.QuietHours{Start: "22:00", End: "06:00"}
	sub.EmergencyOverride = false

	alert := baseAlert()
	alert.ConfidenceScore = 0.80
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, lateNight))

	// High-confidence alerts pierce the window even without the override.
	alert.ConfidenceScore = 0.97
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, lateNight))

	// The override disables quiet hours entirely.
	alert.ConfidenceScore = 0.80
	sub.EmergencyOverride = true
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, lateNight))

	sub.EmergencyOverride = false
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}

func TestShouldNotify_QuietHoursBoundaries(t *testing.T) {
	sub := baseSubscription()
	sub.QuietHours = &models.QuietHours{Start: "22:00", End: "06:00"}
	sub.EmergencyOverride = false

	alert := baseAlert()
	alert.ConfidenceScore = 0.80

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{21, 59, true},
		{22, 0, false},
		{5, 59, false},
		{6, 0, true},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 2, tc.hour, tc.minute, 0, 0, time.UTC)
		got := newFilter().ShouldNotify(context.Background(), sub, alert, at)
		assert.Equalf(t, tc.want, got, "at %02d:%02d", tc.hour, tc.minute)
	}
}

func TestShouldNotify_QuietHoursDefaultsWhenEmpty(t *testing.T) {
	sub := baseSubscription()
	sub.QuietHours = &models.QuietHours{}
	sub.EmergencyOverride = false

	alert := baseAlert()
	alert.ConfidenceScore = 0.80

	lateNight := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.False(t, newFilter().ShouldNotify(context.Background(), sub, alert, lateNight))
	assert.True(t, newFilter().ShouldNotify(context.Background(), sub, alert, noon))
}
