package models

import "time"

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// Rank orders urgency levels for threshold comparison. Unknown levels rank
// below "low" so a malformed alert never clears a subscriber's floor.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyMedium:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	default:
		return -1
	}
}

type AlertLevel string

const (
	AlertLevelInfo      AlertLevel = "info"
	AlertLevelWarning   AlertLevel = "warning"
	AlertLevelAlert     AlertLevel = "alert"
	AlertLevelEmergency AlertLevel = "emergency"
)

// Alert is a classified disaster report produced by the upstream classifier.
// It is immutable once ingested; the notification core only reads it.
type Alert struct {
	ID              string       `json:"alert_id"`
	Platform        string       `json:"platform"`
	Content         string       `json:"content"`
	Author          string       `json:"author"`
	Timestamp       time.Time    `json:"timestamp"`
	DisasterType    string       `json:"disaster_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	IsGenuine       bool         `json:"is_genuine"`
	Location        string       `json:"location"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	State           string       `json:"state,omitempty"`
	Country         string       `json:"country,omitempty"`
	Urgency         UrgencyLevel `json:"urgency_level,omitempty"`
	Level           AlertLevel   `json:"alert_level,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// EffectiveUrgency returns the classifier-supplied urgency, or one derived
// from the confidence score when the classifier omitted it.
func (a *Alert) EffectiveUrgency() UrgencyLevel {
	if a.Urgency != "" {
		return a.Urgency
	}
	switch {
	case a.ConfidenceScore > 0.9:
		return UrgencyHigh
	case a.ConfidenceScore > 0.7:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// EffectiveLevel returns the classifier-supplied alert level, or one derived
// from the confidence score when the classifier omitted it.
func (a *Alert) EffectiveLevel() AlertLevel {
	if a.Level != "" {
		return a.Level
	}
	switch {
	case a.ConfidenceScore > 0.9:
		return AlertLevelEmergency
	case a.ConfidenceScore > 0.7:
		return AlertLevelAlert
	default:
		return AlertLevelWarning
	}
}

// Coordinates reports the alert's explicit coordinates, if both are present.
func (a *Alert) Coordinates() (lat, lon float64, ok bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return 0, 0, false
	}
	return *a.Latitude, *a.Longitude, true
}
