package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"
)

// Config carries settings for the order engine processes.
type Config struct {
	Port              string
	ServiceName       string
	LogLevel          slog.Level
	PostgresDSN       string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	LogisticsBaseURL  string
	RabbitMQURL       string
	RabbitMQExchange  string

	PollInterval      time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	FetchTimeout      time.Duration
	InvoicePageSize   int
	FingerprintSorted bool
	EventHistoryLimit int
}

// LoadConfig reads an optional .env file, an optional config.yaml and the environment,
// applies defaults and validates basic constraints. Environment variables win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/costume-order-engine")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return configFrom(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("service_name", "costume-order-engine")
	v.SetDefault("log_level", "info")
	v.SetDefault("temporal_address", client.DefaultHostPort)
	v.SetDefault("temporal_namespace", client.DefaultNamespace)
	v.SetDefault("rabbitmq_exchange", "orders.events")
	v.SetDefault("poll_interval_ms", 15000)
	v.SetDefault("poll_initial_backoff_ms", 5000)
	v.SetDefault("poll_max_backoff_ms", 60000)
	v.SetDefault("fetch_timeout_ms", 10000)
	v.SetDefault("invoice_page_size", 100)
	v.SetDefault("fingerprint_sorted", false)
	v.SetDefault("event_history_limit", 500)
}

func configFrom(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Port:              strings.TrimSpace(v.GetString("port")),
		ServiceName:       strings.TrimSpace(v.GetString("service_name")),
		PostgresDSN:       strings.TrimSpace(v.GetString("postgres_dsn")),
		TemporalAddress:   strings.TrimSpace(v.GetString("temporal_address")),
		TemporalNamespace: strings.TrimSpace(v.GetString("temporal_namespace")),
		TemporalDisabled:  v.GetBool("temporal_disabled"),
		LogisticsBaseURL:  strings.TrimSpace(v.GetString("logistics_base_url")),
		RabbitMQURL:       strings.TrimSpace(v.GetString("rabbitmq_url")),
		RabbitMQExchange:  strings.TrimSpace(v.GetString("rabbitmq_exchange")),
		PollInterval:      time.Duration(v.GetInt64("poll_interval_ms")) * time.Millisecond,
		InitialBackoff:    time.Duration(v.GetInt64("poll_initial_backoff_ms")) * time.Millisecond,
		MaxBackoff:        time.Duration(v.GetInt64("poll_max_backoff_ms")) * time.Millisecond,
		FetchTimeout:      time.Duration(v.GetInt64("fetch_timeout_ms")) * time.Millisecond,
		InvoicePageSize:   v.GetInt("invoice_page_size"),
		FingerprintSorted: v.GetBool("fingerprint_sorted"),
		EventHistoryLimit: v.GetInt("event_history_limit"),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.PollInterval <= 0:
		return errors.New("POLL_INTERVAL_MS must be a positive integer")
	case c.InitialBackoff <= 0:
		return errors.New("POLL_INITIAL_BACKOFF_MS must be a positive integer")
	case c.MaxBackoff < c.InitialBackoff:
		return errors.New("POLL_MAX_BACKOFF_MS must not be below POLL_INITIAL_BACKOFF_MS")
	case c.FetchTimeout <= 0:
		return errors.New("FETCH_TIMEOUT_MS must be a positive integer")
	case c.InvoicePageSize < 0:
		return errors.New("INVOICE_PAGE_SIZE must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
