package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Intake   IntakeConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
	SMTP     SMTPConfig
	Twilio   TwilioConfig
	Telegram TelegramConfig
	WhatsApp WhatsAppConfig
	Geocoder GeocoderConfig
	Notify   NotifyConfig
	API      APIConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type IntakeConfig struct {
	PollInterval  time.Duration
	MinConfidence float64
	BatchLimit    int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

type TelegramConfig struct {
	Enabled  bool
	BotToken string
	BaseURL  string
}

type WhatsAppConfig struct {
	Enabled   bool
	BridgeURL string
	SendDelay time.Duration
}

type GeocoderConfig struct {
	Enabled   bool
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheSize int
}

type NotifyConfig struct {
	SendTimeout time.Duration
}

type APIConfig struct {
	TestAlertKey string
	RateLimitRPS float64
	RateBurst    int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		Intake: IntakeConfig{
			PollInterval:  getEnvDuration("INTAKE_POLL_INTERVAL", 30*time.Second),
			MinConfidence: getEnvFloat("INTAKE_MIN_CONFIDENCE", 0.5),
			BatchLimit:    getEnvInt("INTAKE_BATCH_LIMIT", 50),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/alert-notify.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		SMTP: SMTPConfig{
			Enabled:  getEnvBool("SMTP_ENABLED", false),
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Twilio: TwilioConfig{
			Enabled:    getEnvBool("TWILIO_ENABLED", false),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		Telegram: TelegramConfig{
			Enabled:  getEnvBool("TELEGRAM_ENABLED", false),
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			BaseURL:  getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:   getEnvBool("WHATSAPP_ENABLED", false),
			BridgeURL: getEnv("WHATSAPP_BRIDGE_URL", "http://localhost:3000/send"),
			SendDelay: getEnvDuration("WHATSAPP_SEND_DELAY", time.Minute),
		},
		Geocoder: GeocoderConfig{
			Enabled:   getEnvBool("GEOCODER_ENABLED", true),
			BaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("GEOCODER_USER_AGENT", "go-alert-notify/1.0"),
			Timeout:   getEnvDuration("GEOCODER_TIMEOUT", 15*time.Second),
			CacheSize: getEnvInt("GEOCODER_CACHE_SIZE", 512),
		},
		Notify: NotifyConfig{
			SendTimeout: getEnvDuration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
		},
		API: APIConfig{
			TestAlertKey: getEnv("API_TEST_ALERT_KEY", ""),
			RateLimitRPS: getEnvFloat("API_RATE_LIMIT_RPS", 10),
			RateBurst:    getEnvInt("API_RATE_BURST", 20),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Intake.PollInterval < time.Second {
		return fmt.Errorf("intake poll interval must be at least 1 second")
	}
	if c.Intake.MinConfidence < 0 || c.Intake.MinConfidence > 1 {
		return fmt.Errorf("intake min confidence must be in [0,1]: %f", c.Intake.MinConfidence)
	}

	if c.SMTP.Enabled && (c.SMTP.Username == "" || c.SMTP.From == "") {
		return fmt.Errorf("SMTP enabled but username or from address missing")
	}
	if c.Twilio.Enabled && (c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.FromNumber == "") {
		return fmt.Errorf("twilio enabled but credentials incomplete")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram enabled but bot token missing")
	}
	if c.WhatsApp.Enabled && c.WhatsApp.BridgeURL == "" {
		return fmt.Errorf("whatsapp enabled but bridge URL missing")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
