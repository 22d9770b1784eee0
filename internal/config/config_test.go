package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.ReconcileInterval != "60s" {
		t.Errorf("ReconcileInterval = %q, want %q", cfg.ReconcileInterval, "60s")
	}
	if cfg.DefaultTTSVoice != "calm-female-1" {
		t.Errorf("DefaultTTSVoice = %q, want default", cfg.DefaultTTSVoice)
	}
	if cfg.CompletionKafkaTopic != "wave-session-completed" {
		t.Errorf("CompletionKafkaTopic = %q, want default", cfg.CompletionKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("RECONCILE_INTERVAL", "5s")
	os.Setenv("DEFAULT_TTS_VOICE", "warm-male-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.ReconcileInterval != "5s" {
		t.Errorf("ReconcileInterval = %q, want %q", cfg.ReconcileInterval, "5s")
	}
	if cfg.DefaultTTSVoice != "warm-male-2" {
		t.Errorf("DefaultTTSVoice = %q, want %q", cfg.DefaultTTSVoice, "warm-male-2")
	}
}

func TestLoad_InvalidInterval(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("RECONCILE_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a non-duration RECONCILE_INTERVAL")
	}
}

func TestReconcileEvery(t *testing.T) {
	cfg := &Config{ReconcileInterval: "90s"}
	if got := cfg.ReconcileEvery(); got != 90*time.Second {
		t.Errorf("ReconcileEvery = %v, want 90s", got)
	}
	cfg = &Config{ReconcileInterval: ""}
	if got := cfg.ReconcileEvery(); got != 60*time.Second {
		t.Errorf("ReconcileEvery fallback = %v, want 60s", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: "localhost:9092, broker2:9092 ,"}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	cfg = &Config{}
	if got := cfg.KafkaBrokersList(); got != nil {
		t.Errorf("KafkaBrokersList on empty = %v, want nil", got)
	}
}
