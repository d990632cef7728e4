package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Capture  CaptureConfig  `mapstructure:"capture"`
	Baseband BasebandConfig `mapstructure:"baseband"`
	Database DatabaseConfig `mapstructure:"database"`
	Web      WebConfig      `mapstructure:"web"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	OUI      OUIConfig      `mapstructure:"oui"`
}

// CaptureConfig describes the offline bit capture to scan
type CaptureConfig struct {
	File        string `mapstructure:"file"`
	Format      string `mapstructure:"format"`      // bits or packed
	Compression string `mapstructure:"compression"` // auto, none, gzip, zstd
}

// BasebandConfig holds what is already known about the target piconet
type BasebandConfig struct {
	LAP          string `mapstructure:"lap"` // hex, empty sniffs any LAP
	UAP          int    `mapstructure:"uap"`
	UAPKnown     bool   `mapstructure:"uap_known"`
	Clock        int    `mapstructure:"clock"` // CLK6-1
	ClockKnown   bool   `mapstructure:"clock_known"`
	MaxPackets   int    `mapstructure:"max_packets"` // 0 means unlimited
	StaleGapBits int    `mapstructure:"stale_gap_bits"`
}

// DatabaseConfig holds SQLite storage configuration
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Set defaults
	setDefaults()

	// Set config file
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/btbb-nexus")
	}

	// Environment variables, e.g. BTBB_BASEBAND_LAP
	viper.SetEnvPrefix("BTBB")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal to struct
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate re-checks a configuration after command line overrides
func (c *Config) Validate() error {
	return validate(c)
}

// OUIConfig holds IEEE OUI registry sync configuration
type OUIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// setDefaults sets default configuration values
func setDefaults() {
	// Capture defaults
	viper.SetDefault("capture.file", "")
	viper.SetDefault("capture.format", "bits")
	viper.SetDefault("capture.compression", "auto")

	// Baseband defaults
	viper.SetDefault("baseband.lap", "")
	viper.SetDefault("baseband.uap", 0)
	viper.SetDefault("baseband.uap_known", false)
	viper.SetDefault("baseband.clock", 0)
	viper.SetDefault("baseband.clock_known", false)
	viper.SetDefault("baseband.max_packets", 0)
	viper.SetDefault("baseband.stale_gap_bits", 1_000_000)

	// Database defaults
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.path", "data/btbb-nexus.db")

	// Web defaults
	viper.SetDefault("web.enabled", false)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "btbb/nexus")
	viper.SetDefault("mqtt.client_id", "btbb-nexus")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", false)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	// OUI registry defaults
	viper.SetDefault("oui.enabled", false)
	viper.SetDefault("oui.url", "https://standards-oui.ieee.org/oui/oui.csv")
	viper.SetDefault("oui.sync_interval", "24h")
}
