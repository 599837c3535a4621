package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			subscriber_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_method TEXT NOT NULL,
			contact_address TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			alert_radius_km REAL NOT NULL DEFAULT 100,
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			disaster_types TEXT NOT NULL DEFAULT '[]',
			regions TEXT NOT NULL DEFAULT '[]',
			countries TEXT NOT NULL DEFAULT '[]',
			min_confidence REAL NOT NULL DEFAULT 0.7,
			min_urgency TEXT NOT NULL DEFAULT 'medium',
			alert_levels TEXT NOT NULL DEFAULT '[]',
			max_per_hour INTEGER NOT NULL DEFAULT 10,
			quiet_hours TEXT NOT NULL DEFAULT '{}',
			language TEXT NOT NULL DEFAULT 'english',
			emergency_override INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			last_notified INTEGER NOT NULL DEFAULT 0,
			notification_count INTEGER NOT NULL DEFAULT 0,
			hourly_count INTEGER NOT NULL DEFAULT 0,
			hourly_window_start INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS alerts (
			alert_id TEXT PRIMARY KEY,
			platform TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL,
			disaster_type TEXT NOT NULL,
			confidence_score REAL NOT NULL,
			is_genuine INTEGER NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			latitude REAL,
			longitude REAL,
			state TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			urgency_level TEXT NOT NULL DEFAULT '',
			alert_level TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			notified INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_subscriptions_active ON subscriptions(is_active);
		CREATE INDEX IF NOT EXISTS idx_alerts_notified ON alerts(notified);
		CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// UpsertSubscription writes one subscription record. List and map fields are
// serialized as JSON text with explicit empty-collection defaults so loads
// never see nulls.
func (s *SQLiteDB) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	disasterTypes := marshalList(sub.DisasterTypes)
	regions := marshalList(sub.Regions)
	countries := marshalList(sub.Countries)
	alertLevels := marshalList(sub.AlertLevels)

	quietHours := "{}"
	if sub.QuietHours != nil {
		b, err := json.Marshal(sub.QuietHours)
		if err != nil {
			return fmt.Errorf("marshal quiet_hours: %w", err)
		}
		quietHours = string(b)
	}

	minUrgency := sub.MinUrgency
	if minUrgency == "" {
		minUrgency = models.UrgencyMedium
	}
	language := sub.Language
	if language == "" {
		language = "english"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscriptions (
			subscriber_id, name, contact_method, contact_address,
			latitude, longitude, alert_radius_km, city, state, country,
			disaster_types, regions, countries,
			min_confidence, min_urgency, alert_levels,
			max_per_hour, quiet_hours, language, emergency_override,
			created_at, last_notified, notification_count,
			hourly_count, hourly_window_start, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, string(sub.ContactMethod), sub.ContactAddress,
		nullFloat(sub.Latitude), nullFloat(sub.Longitude), sub.AlertRadiusKm, sub.City, sub.State, sub.Country,
		disasterTypes, regions, countries,
		sub.MinConfidence, string(minUrgency), alertLevels,
		sub.MaxPerHour, quietHours, language, boolToInt(sub.EmergencyOverride),
		sub.CreatedAt, sub.LastNotified, sub.NotificationCount,
		sub.HourlyCount, sub.HourlyWindowStart, boolToInt(sub.IsActive),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := s.db.QueryRowContext(ctx, selectSubscription+` WHERE subscriber_id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *SQLiteDB) ListActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscription+` WHERE is_active = 1 ORDER BY created_at, subscriber_id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

const selectSubscription = `
	SELECT subscriber_id, name, contact_method, contact_address,
		latitude, longitude, alert_radius_km, city, state, country,
		disaster_types, regions, countries,
		min_confidence, min_urgency, alert_levels,
		max_per_hour, quiet_hours, language, emergency_override,
		created_at, last_notified, notification_count,
		hourly_count, hourly_window_start, is_active
	FROM subscriptions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                    models.Subscription
		method                 string
		minUrgency             string
		lat, lon               sql.NullFloat64
		disasterTypes, regions string
		countries, alertLevels string
		quietHours             string
		emergencyOverride, act int
	)

	err := row.Scan(
		&sub.ID, &sub.Name, &method, &sub.ContactAddress,
		&lat, &lon, &sub.AlertRadiusKm, &sub.City, &sub.State, &sub.Country,
		&disasterTypes, &regions, &countries,
		&sub.MinConfidence, &minUrgency, &alertLevels,
		&sub.MaxPerHour, &quietHours, &sub.Language, &emergencyOverride,
		&sub.CreatedAt, &sub.LastNotified, &sub.NotificationCount,
		&sub.HourlyCount, &sub.HourlyWindowStart, &act,
	)
	if err != nil {
		return nil, err
	}

	sub.ContactMethod = models.ContactMethod(method)
	sub.MinUrgency = models.UrgencyLevel(minUrgency)
	if lat.Valid {
		v := lat.Float64
		sub.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		sub.Longitude = &v
	}
	sub.DisasterTypes = unmarshalList(disasterTypes)
	sub.Regions = unmarshalList(regions)
	sub.Countries = unmarshalList(countries)
	sub.AlertLevels = unmarshalList(alertLevels)
	sub.EmergencyOverride = emergencyOverride != 0
	sub.IsActive = act != 0

	var qh models.QuietHours
	if err := json.Unmarshal([]byte(quietHours), &qh); err == nil && (qh.Start != "" || qh.End != "") {
		sub.QuietHours = &qh
	}

	return &sub, nil
}

func (s *SQLiteDB) AddAlert(ctx context.Context, a *models.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			alert_id, platform, content, author, timestamp,
			disaster_type, confidence_score, is_genuine, location,
			latitude, longitude, state, country,
			urgency_level, alert_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Platform, a.Content, a.Author, a.Timestamp,
		a.DisasterType, a.ConfidenceScore, boolToInt(a.IsGenuine), a.Location,
		nullFloat(a.Latitude), nullFloat(a.Longitude), a.State, a.Country,
		string(a.Urgency), string(a.Level), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) AlertExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM alerts WHERE alert_id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("alert exists: %w", err)
	}
	return true, nil
}

func (s *SQLiteDB) ListPendingAlerts(ctx context.Context, minConfidence float64, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id, platform, content, author, timestamp,
			disaster_type, confidence_score, is_genuine, location,
			latitude, longitude, state, country,
			urgency_level, alert_level, created_at
		FROM alerts
		WHERE notified = 0 AND confidence_score >= ?
		ORDER BY timestamp
		LIMIT ?`, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var (
			a          models.Alert
			genuine    int
			lat, lon   sql.NullFloat64
			urg, level string
		)
		err := rows.Scan(
			&a.ID, &a.Platform, &a.Content, &a.Author, &a.Timestamp,
			&a.DisasterType, &a.ConfidenceScore, &genuine, &a.Location,
			&lat, &lon, &a.State, &a.Country,
			&urg, &level, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		a.IsGenuine = genuine != 0
		if lat.Valid {
			v := lat.Float64
			a.Latitude = &v
		}
		if lon.Valid {
			v := lon.Float64
			a.Longitude = &v
		}
		a.Urgency = models.UrgencyLevel(urg)
		a.Level = models.AlertLevel(level)
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteDB) MarkNotified(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET notified = 1 WHERE alert_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("mark notified: %w", err)
	}
	return res.RowsAffected()
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
