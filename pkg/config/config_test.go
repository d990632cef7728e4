package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Capture:  CaptureConfig{Format: "bits", Compression: "auto"},
		Database: DatabaseConfig{Enabled: true, Path: "test.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Spot-check a few defaults
	if cfg.Capture.Format != "bits" {
		t.Errorf("expected Capture.Format default bits, got %q", cfg.Capture.Format)
	}
	if cfg.Capture.Compression != "auto" {
		t.Errorf("expected Capture.Compression default auto, got %q", cfg.Capture.Compression)
	}
	if cfg.Baseband.LAP != "" {
		t.Errorf("expected empty Baseband.LAP, got %q", cfg.Baseband.LAP)
	}
	if cfg.Baseband.StaleGapBits != 1_000_000 {
		t.Errorf("expected Baseband.StaleGapBits default 1000000, got %d", cfg.Baseband.StaleGapBits)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web.Port default 8080, got %d", cfg.Web.Port)
	}
	if cfg.MQTT.TopicPrefix != "btbb/nexus" {
		t.Errorf("expected MQTT.TopicPrefix default btbb/nexus, got %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Prometheus.Port != 9090 {
		t.Errorf("expected Prometheus.Port default 9090, got %d", cfg.Metrics.Prometheus.Port)
	}
	if cfg.OUI.Enabled || cfg.OUI.SyncInterval != 24*time.Hour {
		t.Errorf("expected OUI sync disabled with 24h interval, got %+v", cfg.OUI)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
capture:
  file: capture.bin.zst
  format: packed
baseband:
  lap: "9e8b33"
  uap: 71
  uap_known: true
database:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Capture.File != "capture.bin.zst" || cfg.Capture.Format != "packed" {
		t.Errorf("capture section not loaded: %+v", cfg.Capture)
	}
	if cfg.Baseband.LAP != "9e8b33" || cfg.Baseband.UAP != 0x47 || !cfg.Baseband.UAPKnown {
		t.Errorf("baseband section not loaded: %+v", cfg.Baseband)
	}
	if cfg.Database.Enabled {
		t.Error("expected database disabled")
	}
}

func TestLoad_InvalidFileFailsValidation(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  format: wav\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for capture.format")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad capture format", func(c *Config) { c.Capture.Format = "wav" }},
		{"bad compression", func(c *Config) { c.Capture.Compression = "xz" }},
		{"bad lap", func(c *Config) { c.Baseband.LAP = "xyz" }},
		{"lap too wide", func(c *Config) { c.Baseband.LAP = "1000000" }},
		{"uap out of range", func(c *Config) { c.Baseband.UAP = 0x100 }},
		{"clock out of range", func(c *Config) { c.Baseband.Clock = 64 }},
		{"negative max packets", func(c *Config) { c.Baseband.MaxPackets = -1 }},
		{"database without path", func(c *Config) { c.Database.Path = "" }},
		{"invalid web port when enabled", func(c *Config) { c.Web = WebConfig{Enabled: true, Port: 70000} }},
		{"mqtt without broker", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true} }},
		{"mqtt bad qos", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true, Broker: "tcp://x:1883", QoS: 3} }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"oui without database", func(c *Config) {
			c.Database.Enabled = false
			c.OUI = OUIConfig{Enabled: true, URL: "http://x/oui.csv", SyncInterval: time.Hour}
		}},
		{"oui without url", func(c *Config) { c.OUI = OUIConfig{Enabled: true, SyncInterval: time.Hour} }},
		{"oui interval too short", func(c *Config) {
			c.OUI = OUIConfig{Enabled: true, URL: "http://x/oui.csv", SyncInterval: time.Second}
		}},
		{"bad prometheus path", func(c *Config) {
			c.Metrics = MetricsConfig{Enabled: true, Prometheus: PrometheusConfig{Enabled: true, Port: 9090, Path: "metrics"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestParseLAP(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"9e8b33", 0x9e8b33, false},
		{"0x9E8B33", 0x9e8b33, false},
		{"0", 0, false},
		{"ffffff", 0xffffff, false},
		{"1000000", 0, true},
		{"", 0, true},
		{"lap", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLAP(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLAP(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLAP(%q) = %06x, want %06x", tt.in, got, tt.want)
		}
	}
}
