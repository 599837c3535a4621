package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-alert-notify/internal/api"
	"github.com/mr1hm/go-alert-notify/internal/config"
	"github.com/mr1hm/go-alert-notify/internal/geocode"
	"github.com/mr1hm/go-alert-notify/internal/intake"
	"github.com/mr1hm/go-alert-notify/internal/logging"
	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/notify"
	"github.com/mr1hm/go-alert-notify/internal/notify/channels"
	"github.com/mr1hm/go-alert-notify/internal/observability"
	"github.com/mr1hm/go-alert-notify/internal/repository"
	"github.com/mr1hm/go-alert-notify/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	stats := notify.NewStats(metrics)

	var geocoder geocode.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder = geocode.NewCachedGeocoder(
			geocode.NewNominatimClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout),
			cfg.Geocoder.CacheSize,
		)
	}

	hub := ws.NewHub(metrics)

	handlers, whatsapp := buildHandlers(cfg, clock)
	channelNames := make([]string, 0, len(handlers)+1)
	for method, handler := range handlers {
		if handler.Enabled() {
			channelNames = append(channelNames, string(method))
		}
	}
	channelNames = append(channelNames, string(models.ContactWebsocket))

	store := notify.NewStore(db, clock, metrics)
	if err := store.Load(ctx); err != nil {
		logging.Fatalf("Failed to load subscriptions: %v", err)
	}

	filter := notify.NewFilter(geocoder, stats)
	orch := notify.NewOrchestrator(store, filter, handlers, hub, stats, clock, metrics, cfg.Notify.SendTimeout)

	mgr := intake.NewManager(intake.Options{
		PollInterval:  cfg.Intake.PollInterval,
		MinConfidence: cfg.Intake.MinConfidence,
		BatchLimit:    cfg.Intake.BatchLimit,
		Workers:       cfg.Worker.Count,
		BufferSize:    cfg.Worker.BufferSize,
	}, db, orch)
	mgr.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Test-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.API.RateLimitRPS, cfg.API.RateBurst))

	handler := api.NewHandler(store, stats, db, mgr, orch.Dispatch, metrics, channelNames, cfg.API.TestAlertKey)
	handler.RegisterRoutes(router)
	router.GET("/ws", hub.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	// Stop accepting HTTP requests before tearing down intake, so no
	// in-flight ingest can enqueue onto a stopped pool.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	mgr.Stop()
	if whatsapp != nil {
		whatsapp.Close() // Cancel scheduled sends
	}
	hub.Close()

	slog.Info("shutdown complete")
}

// buildHandlers wires one delivery handler per enabled channel. Webhook
// needs no credentials; the other channels join the map only when their
// enabled flag is set, so a configured-but-disabled channel stays dark.
// The WhatsApp handler is returned separately for shutdown.
func buildHandlers(cfg *config.Config, clock clockwork.Clock) (map[models.ContactMethod]channels.Handler, *channels.WhatsAppHandler) {
	handlers := map[models.ContactMethod]channels.Handler{
		models.ContactWebhook: channels.NewWebhookHandler(cfg.Notify.SendTimeout),
	}
	if cfg.SMTP.Enabled {
		handlers[models.ContactEmail] = channels.NewEmailHandler(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	if cfg.Twilio.Enabled {
		handlers[models.ContactSMS] = channels.NewSMSHandler(
			cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber,
			cfg.Twilio.BaseURL, cfg.Notify.SendTimeout)
	}
	if cfg.Telegram.Enabled {
		handlers[models.ContactTelegram] = channels.NewTelegramHandler(
			cfg.Telegram.BotToken, cfg.Telegram.BaseURL, cfg.Notify.SendTimeout)
	}
	var whatsapp *channels.WhatsAppHandler
	if cfg.WhatsApp.Enabled {
		whatsapp = channels.NewWhatsAppHandler(
			cfg.WhatsApp.BridgeURL, cfg.WhatsApp.SendDelay, cfg.Notify.SendTimeout, clock)
		handlers[models.ContactWhatsApp] = whatsapp
	}
	return handlers, whatsapp
}
