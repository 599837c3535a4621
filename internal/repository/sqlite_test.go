package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSubscriptionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lat, lon := 19.076, 72.8777
	sub := models.NewSubscription("sub-1", "Asha", models.ContactEmail, "asha@example.com",
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	sub.Latitude = &lat
	sub.Longitude = &lon
	sub.AlertRadiusKm = 50
	sub.City = "Mumbai"
	sub.Country = "India"
	sub.DisasterTypes = []string{"flood", "cyclone"}
	sub.AlertLevels = []string{"alert", "emergency"}
	sub.MaxPerHour = 3
	sub.QuietHours = &models.QuietHours{Start: "22:00", End: "06:00"}
	sub.LastNotified = 1740000000
	sub.NotificationCount = 7
	sub.HourlyCount = 2
	sub.HourlyWindowStart = 483333

	require.NoError(t, db.UpsertSubscription(ctx, sub))

	got, err := db.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sub.Name, got.Name)
	assert.Equal(t, sub.ContactMethod, got.ContactMethod)
	assert.Equal(t, sub.ContactAddress, got.ContactAddress)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, lat, *got.Latitude, 1e-9)
	assert.Equal(t, sub.DisasterTypes, got.DisasterTypes)
	assert.Equal(t, sub.AlertLevels, got.AlertLevels)
	assert.Equal(t, sub.MaxPerHour, got.MaxPerHour)
	require.NotNil(t, got.QuietHours)
	assert.Equal(t, "22:00", got.QuietHours.Start)
	assert.Equal(t, "06:00", got.QuietHours.End)
	assert.Equal(t, sub.LastNotified, got.LastNotified)
	assert.Equal(t, sub.NotificationCount, got.NotificationCount)
	assert.Equal(t, sub.HourlyCount, got.HourlyCount)
	assert.Equal(t, sub.HourlyWindowStart, got.HourlyWindowStart)
	assert.True(t, got.IsActive)
}

func TestSubscriptionDefaultsSurviveRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub := models.NewSubscription("sub-2", "Ben", models.ContactWebhook, "https://example.com/hook",
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, db.UpsertSubscription(ctx, sub))

	got, err := db.GetSubscription(ctx, "sub-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
	assert.Nil(t, got.QuietHours)
	assert.Equal(t, []string{}, got.DisasterTypes)
	assert.Equal(t, []string{}, got.Regions)
	assert.Equal(t, []string{}, got.Countries)
	assert.Equal(t, []string{}, got.AlertLevels)
	assert.Equal(t, models.UrgencyMedium, got.MinUrgency)
	assert.True(t, got.EmergencyOverride)
}

func TestGetSubscriptionMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetSubscription(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListActiveSubscriptionsSkipsInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := models.NewSubscription("a", "First", models.ContactEmail, "a@example.com", base)
	second := models.NewSubscription("b", "Second", models.ContactSMS, "+15551234567", base.Add(time.Minute))
	gone := models.NewSubscription("c", "Gone", models.ContactEmail, "c@example.com", base.Add(2*time.Minute))
	gone.IsActive = false

	require.NoError(t, db.UpsertSubscription(ctx, first))
	require.NoError(t, db.UpsertSubscription(ctx, second))
	require.NoError(t, db.UpsertSubscription(ctx, gone))

	subs, err := db.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "a", subs[0].ID)
	assert.Equal(t, "b", subs[1].ID)
}

func TestUpsertReplacesExisting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub := models.NewSubscription("sub-3", "Cara", models.ContactEmail, "cara@example.com", time.Now().UTC())
	require.NoError(t, db.UpsertSubscription(ctx, sub))

	sub.NotificationCount = 4
	sub.HourlyCount = 1
	require.NoError(t, db.UpsertSubscription(ctx, sub))

	got, err := db.GetSubscription(ctx, "sub-3")
	require.NoError(t, err)
	assert.Equal(t, 4, got.NotificationCount)
	assert.Equal(t, 1, got.HourlyCount)

	subs, err := db.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func testAlert(id string, confidence float64, ts time.Time) *models.Alert {
	return &models.Alert{
		ID:              id,
		Platform:        "twitter",
		Content:         "river rising fast near the old bridge",
		Author:          "observer",
		Timestamp:       ts,
		DisasterType:    "flood",
		ConfidenceScore: confidence,
		IsGenuine:       true,
		Location:        "Mumbai",
		CreatedAt:       ts,
	}
}

func TestAlertLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	exists, err := db.AlertExists(ctx, "alert-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.AddAlert(ctx, testAlert("alert-1", 0.92, base)))
	require.NoError(t, db.AddAlert(ctx, testAlert("alert-2", 0.55, base.Add(time.Minute))))
	require.NoError(t, db.AddAlert(ctx, testAlert("alert-3", 0.88, base.Add(2*time.Minute))))

	exists, err = db.AlertExists(ctx, "alert-1")
	require.NoError(t, err)
	assert.True(t, exists)

	pending, err := db.ListPendingAlerts(ctx, 0.7, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "alert-1", pending[0].ID)
	assert.Equal(t, "alert-3", pending[1].ID)

	n, err := db.MarkNotified(ctx, []string{"alert-1", "alert-3"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	pending, err = db.ListPendingAlerts(ctx, 0.0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alert-2", pending[0].ID)
}

func TestMarkNotifiedEmpty(t *testing.T) {
	db := newTestDB(t)

	n, err := db.MarkNotified(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAlertCoordinatesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := testAlert("alert-geo", 0.9, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	lat, lon := 19.076, 72.8777
	a.Latitude = &lat
	a.Longitude = &lon
	a.Urgency = models.UrgencyHigh
	a.Level = models.AlertLevelEmergency
	require.NoError(t, db.AddAlert(ctx, a))

	pending, err := db.ListPendingAlerts(ctx, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	got := pending[0]
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, lat, *got.Latitude, 1e-9)
	assert.Equal(t, models.UrgencyHigh, got.Urgency)
	assert.Equal(t, models.AlertLevelEmergency, got.Level)
}
