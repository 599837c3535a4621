package repository

import (
	"context"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

// SubscriptionRepository persists subscriber notification preferences.
// Records survive unsubscription (soft delete) for audit.
type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error)
}

// AlertRepository is the intake sink for alerts produced by the external
// classifier, and the work queue the notification loop drains.
type AlertRepository interface {
	AddAlert(ctx context.Context, a *models.Alert) error
	AlertExists(ctx context.Context, id string) (bool, error)
	// ListPendingAlerts returns alerts not yet dispatched with confidence at
	// or above the floor, oldest first.
	ListPendingAlerts(ctx context.Context, minConfidence float64, limit int) ([]*models.Alert, error)
	// MarkNotified flags alerts as dispatched and returns how many rows changed.
	MarkNotified(ctx context.Context, ids []string) (int64, error)
}
