package models

import "time"

type ContactMethod string

const (
	ContactEmail     ContactMethod = "email"
	ContactSMS       ContactMethod = "sms"
	ContactTelegram  ContactMethod = "telegram"
	ContactWebhook   ContactMethod = "webhook"
	ContactWebsocket ContactMethod = "websocket"
	ContactWhatsApp  ContactMethod = "whatsapp"
)

func (m ContactMethod) Valid() bool {
	switch m {
	case ContactEmail, ContactSMS, ContactTelegram, ContactWebhook, ContactWebsocket, ContactWhatsApp:
		return true
	}
	return false
}

// QuietHours is a local-time window during which non-emergency notifications
// are suppressed. Times are "HH:MM" 24h strings; Start > End wraps midnight.
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Subscription is a standing notification preference for one subscriber.
type Subscription struct {
	ID             string        `json:"subscriber_id"`
	Name           string        `json:"name"`
	ContactMethod  ContactMethod `json:"contact_method"`
	ContactAddress string        `json:"contact_address"`

	// Geographic filters. Proximity and administrative matching are
	// independent; both apply when configured.
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	AlertRadiusKm float64  `json:"alert_radius_km"`
	City          string   `json:"city,omitempty"`
	State         string   `json:"state,omitempty"`
	Country       string   `json:"country,omitempty"`

	// Content filters. Empty slices mean "all".
	DisasterTypes []string     `json:"disaster_types"`
	Regions       []string     `json:"regions"`
	Countries     []string     `json:"countries"`
	MinConfidence float64      `json:"min_confidence"`
	MinUrgency    UrgencyLevel `json:"min_urgency"`
	AlertLevels   []string     `json:"alert_levels"`

	// Delivery policy.
	MaxPerHour        int         `json:"max_per_hour"`
	QuietHours        *QuietHours `json:"quiet_hours,omitempty"`
	EmergencyOverride bool        `json:"emergency_override"`
	Language          string      `json:"language"`

	// Mutable state, owned by the orchestrator after a confirmed send.
	CreatedAt         time.Time `json:"created_at"`
	LastNotified      int64     `json:"last_notified"`
	NotificationCount int       `json:"notification_count"`
	HourlyCount       int       `json:"hourly_count"`
	HourlyWindowStart int64     `json:"hourly_window_start"`
	IsActive          bool      `json:"is_active"`
}

// NewSubscription returns a subscription with the documented defaults applied.
func NewSubscription(id, name string, method ContactMethod, address string, createdAt time.Time) *Subscription {
	return &Subscription{
		ID:                id,
		Name:              name,
		ContactMethod:     method,
		ContactAddress:    address,
		AlertRadiusKm:     100,
		DisasterTypes:     []string{},
		Regions:           []string{},
		Countries:         []string{},
		MinConfidence:     0.7,
		MinUrgency:        UrgencyMedium,
		AlertLevels:       []string{},
		MaxPerHour:        10,
		EmergencyOverride: true,
		Language:          "english",
		CreatedAt:         createdAt,
		IsActive:          true,
	}
}
