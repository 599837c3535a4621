package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/notify"
	"github.com/mr1hm/go-alert-notify/internal/observability"
	"github.com/mr1hm/go-alert-notify/internal/repository"
)

// Enqueuer hands a stored alert to the dispatch pipeline without waiting
// for the next poll cycle.
type Enqueuer interface {
	Enqueue(alert *models.Alert) bool
}

type Handler struct {
	store    *notify.Store
	stats    *notify.Stats
	alerts   repository.AlertRepository
	enqueuer Enqueuer
	dispatch func(ctx context.Context, alert *models.Alert) int
	metrics  *observability.Metrics
	channels []string
	testKey  string
}

func NewHandler(
	store *notify.Store,
	stats *notify.Stats,
	alerts repository.AlertRepository,
	enqueuer Enqueuer,
	dispatch func(ctx context.Context, alert *models.Alert) int,
	metrics *observability.Metrics,
	channels []string,
	testKey string,
) *Handler {
	return &Handler{
		store:    store,
		stats:    stats,
		alerts:   alerts,
		enqueuer: enqueuer,
		dispatch: dispatch,
		metrics:  metrics,
		channels: channels,
		testKey:  testKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/subscribe", h.subscribe)
	r.DELETE("/api/unsubscribe/:id", h.unsubscribe)
	r.GET("/api/stats", h.getStats)
	r.POST("/api/alerts", h.ingestAlert)
	r.POST("/api/debug/test-alert", h.testAlert)
	r.GET("/health", h.health)
}

// subscribe accepts a flat JSON document. Identity fields are required;
// every other recognized key is treated as a notification preference.
func (h *Handler) subscribe(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	name, _ := body["name"].(string)
	method, _ := body["contact_method"].(string)
	address, _ := body["contact_address"].(string)
	if name == "" || method == "" || address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "name, contact_method and contact_address are required",
		})
		return
	}

	cm := models.ContactMethod(method)
	if !cm.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown contact method: %s", method),
		})
		return
	}

	delete(body, "name")
	delete(body, "contact_method")
	delete(body, "contact_address")

	id, err := h.store.Subscribe(c.Request.Context(), name, cm, address, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscriber_id": id})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	id := c.Param("id")
	if !h.store.Unsubscribe(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown subscriber"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriber_id": id, "status": "unsubscribed"})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notification_stats":   h.stats.Snapshot(),
		"active_subscriptions": h.store.Count(),
		"available_channels":   h.channels,
	})
}

func (h *Handler) ingestAlert(c *gin.Context) {
	var alert models.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert payload"})
		return
	}
	if alert.ID == "" || alert.DisasterType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_id and disaster_type are required"})
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	ctx := c.Request.Context()
	exists, err := h.alerts.AlertExists(ctx, alert.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check alert"})
		return
	}
	if exists {
		c.JSON(http.StatusOK, gin.H{"alert_id": alert.ID, "status": "duplicate"})
		return
	}

	if err := h.alerts.AddAlert(ctx, &alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store alert"})
		return
	}

	if h.metrics != nil {
		h.metrics.AlertsIngested.Inc()
	}
	h.enqueuer.Enqueue(&alert)

	c.JSON(http.StatusAccepted, gin.H{"alert_id": alert.ID, "status": "queued"})
}

// testAlert synthesizes a maximum-confidence alert and dispatches it
// synchronously. It is never persisted. Gated behind a shared key so the
// endpoint cannot be used to spam subscribers.
func (h *Handler) testAlert(c *gin.Context) {
	if h.testKey == "" || c.GetHeader("X-Test-Key") != h.testKey {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	now := time.Now().UTC()
	lat, lon := 35.6762, 139.6503
	alert := &models.Alert{
		ID:              fmt.Sprintf("test_%d", now.UnixNano()),
		Platform:        "test",
		Content:         "This is a test alert for verifying delivery channels",
		Author:          "system",
		Timestamp:       now,
		DisasterType:    "earthquake",
		ConfidenceScore: 1.0,
		IsGenuine:       true,
		Location:        "Tokyo",
		Latitude:        &lat,
		Longitude:       &lon,
		Country:         "Japan",
		CreatedAt:       now,
	}
	if raw, ok := c.GetQuery("disaster_type"); ok && raw != "" {
		alert.DisasterType = raw
	}

	sent := h.dispatch(c.Request.Context(), alert)

	c.JSON(http.StatusOK, gin.H{
		"alert_id": alert.ID,
		"sent":     sent,
		"message":  "test alert dispatched (not persisted)",
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
