// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// ReconcileInterval is how often the wave-expiration sweep runs (e.g. "60s").
	ReconcileInterval string `mapstructure:"RECONCILE_INTERVAL"`

	// TranscribeURL is the base URL of the speech-to-text service.
	TranscribeURL string `mapstructure:"TRANSCRIBE_URL"`
	// TransformURL is the base URL of the belief-transformation service.
	TransformURL string `mapstructure:"TRANSFORM_URL"`
	// SynthURL is the base URL of the speech-synthesis service.
	SynthURL string `mapstructure:"SYNTH_URL"`
	// SpeechAPIKey authenticates calls to the transcribe/transform/synth services.
	SpeechAPIKey string `mapstructure:"SPEECH_API_KEY"`
	// AssetStoreURL is the base URL of the audio asset store.
	AssetStoreURL string `mapstructure:"ASSET_STORE_URL"`
	// DefaultTTSVoice is the synthesis voice used when neither the caller nor the user specifies one.
	DefaultTTSVoice string `mapstructure:"DEFAULT_TTS_VOICE"`

	// Completion events (optional). When Kafka brokers are set, the reconciler
	// emits a session-completed event per completed session.
	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// CompletionKafkaTopic is the Kafka topic for completion events.
	CompletionKafkaTopic string `mapstructure:"COMPLETION_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("RECONCILE_INTERVAL", "60s")
	v.SetDefault("TRANSCRIBE_URL", "")
	v.SetDefault("TRANSFORM_URL", "")
	v.SetDefault("SYNTH_URL", "")
	v.SetDefault("SPEECH_API_KEY", "")
	v.SetDefault("ASSET_STORE_URL", "")
	v.SetDefault("DEFAULT_TTS_VOICE", "calm-female-1")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("COMPLETION_KAFKA_TOPIC", "wave-session-completed")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DefaultTTSVoice == "" {
		return nil, errors.New("config: DEFAULT_TTS_VOICE must be set")
	}
	if cfg.ReconcileInterval != "" {
		if _, err := time.ParseDuration(cfg.ReconcileInterval); err != nil {
			return nil, fmt.Errorf("config: RECONCILE_INTERVAL is not a duration: %w", err)
		}
	}

	return &cfg, nil
}

// ReconcileEvery parses ReconcileInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) ReconcileEvery() time.Duration {
	d, err := time.ParseDuration(c.ReconcileInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// KafkaBrokersList splits KafkaBrokers on commas, trimming whitespace and dropping empties.
func (c *Config) KafkaBrokersList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
