package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate capture config
	switch cfg.Capture.Format {
	case "bits", "packed":
	default:
		return fmt.Errorf("capture.format must be bits or packed, got %q", cfg.Capture.Format)
	}
	switch cfg.Capture.Compression {
	case "auto", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("capture.compression must be auto, none, gzip or zstd, got %q", cfg.Capture.Compression)
	}

	// Validate baseband config
	if cfg.Baseband.LAP != "" {
		if _, err := ParseLAP(cfg.Baseband.LAP); err != nil {
			return err
		}
	}
	if cfg.Baseband.UAP < 0 || cfg.Baseband.UAP > 0xff {
		return fmt.Errorf("baseband.uap must be between 0x00 and 0xff")
	}
	if cfg.Baseband.Clock < 0 || cfg.Baseband.Clock > 0x3f {
		return fmt.Errorf("baseband.clock must be between 0 and 63")
	}
	if cfg.Baseband.MaxPackets < 0 {
		return fmt.Errorf("baseband.max_packets must not be negative")
	}
	if cfg.Baseband.StaleGapBits < 0 {
		return fmt.Errorf("baseband.stale_gap_bits must not be negative")
	}

	// Validate database config
	if cfg.Database.Enabled && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate MQTT config
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(cfg.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	// Validate OUI config
	if cfg.OUI.Enabled {
		if !cfg.Database.Enabled {
			return fmt.Errorf("oui requires the database to be enabled")
		}
		if cfg.OUI.URL == "" {
			return fmt.Errorf("oui.url is required when oui is enabled")
		}
		if cfg.OUI.SyncInterval < time.Minute {
			return fmt.Errorf("oui.sync_interval must be at least 1m")
		}
	}

	return nil
}

// ParseLAP parses a hex LAP with an optional 0x prefix
func ParseLAP(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid LAP %q: %w", s, err)
	}
	if v > baseband.LAPMask {
		return 0, fmt.Errorf("invalid LAP %q: more than 24 bits", s)
	}
	return uint32(v), nil
}
