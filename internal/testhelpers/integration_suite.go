package testhelpers

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/capture"
	"github.com/dbehnke/btbb-nexus/pkg/config"
	"github.com/dbehnke/btbb-nexus/pkg/database"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
)

// IntegrationSuite provides infrastructure for integration tests
type IntegrationSuite struct {
	T      *testing.T
	Logger *logger.Logger
	Ctx    context.Context
	Cancel context.CancelFunc
	Dir    string
	DB     *database.DB
}

// NewIntegrationSuite creates a new integration test suite
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	return &IntegrationSuite{
		T:      t,
		Logger: log,
		Ctx:    ctx,
		Cancel: cancel,
		Dir:    t.TempDir(),
	}
}

// OpenDB opens a fresh database in the suite directory. It is closed by
// Cleanup.
func (s *IntegrationSuite) OpenDB() *database.DB {
	if s.DB != nil {
		return s.DB
	}
	db, err := database.NewDB(database.Config{Path: filepath.Join(s.Dir, "btbb-nexus.db")}, s.Logger)
	if err != nil {
		s.T.Fatalf("Failed to open database: %v", err)
	}
	s.DB = db
	return db
}

// WriteCapture stores bits as a capture file named name and returns its
// path. Compression follows the extension.
func (s *IntegrationSuite) WriteCapture(name string, bits []byte, format capture.Format) string {
	path := filepath.Join(s.Dir, name)
	if err := capture.Create(path, bits, capture.Options{Format: format, Compression: capture.CompressionAuto}); err != nil {
		s.T.Fatalf("Failed to write capture %s: %v", name, err)
	}
	return path
}

// GetFreePort gets a free port for testing
func (s *IntegrationSuite) GetFreePort() int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		s.T.Fatal(err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.T.Fatal(err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}

// Cleanup cleans up resources
func (s *IntegrationSuite) Cleanup() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.T.Logf("Failed to close database: %v", err)
		}
		s.DB = nil
	}

	// Cancel context
	s.Cancel()
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// CreateDefaultConfig creates a default test configuration
func CreateDefaultConfig() *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{
			Format:      "bits",
			Compression: "auto",
		},
		Baseband: config.BasebandConfig{
			StaleGapBits: 1000000,
		},
		Database: config.DatabaseConfig{
			Enabled: false,
		},
		Web: config.WebConfig{
			Enabled: false,
		},
		MQTT: config.MQTTConfig{
			Enabled: false,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}
