// Package oui keeps a local copy of the IEEE MA-L registry so sniffed
// UAPs can be matched to candidate manufacturers.
package oui

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/database"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
)

const (
	// DefaultURL is the IEEE MA-L registry in CSV form
	DefaultURL = "https://standards-oui.ieee.org/oui/oui.csv"
	// DefaultSyncInterval is how often to sync the registry
	DefaultSyncInterval = 24 * time.Hour
	// BatchSize for database upserts
	BatchSize = 1000
)

// Config holds syncer configuration
type Config struct {
	URL          string
	SyncInterval time.Duration
}

// Syncer handles syncing the OUI registry
type Syncer struct {
	config Config
	repo   *database.VendorRepository
	logger *logger.Logger
	client *http.Client
}

// NewSyncer creates a new OUI registry syncer
func NewSyncer(config Config, repo *database.VendorRepository, log *logger.Logger) *Syncer {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultSyncInterval
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Syncer{
		config: config,
		repo:   repo,
		logger: log.WithComponent("oui"),
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Start syncs immediately and then every SyncInterval until ctx is done
func (s *Syncer) Start(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.logger.Info("Starting OUI registry sync")
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("Failed to sync OUI registry on startup", logger.Error(err))
	}

	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("OUI syncer stopped")
			return
		case <-ticker.C:
			s.logger.Info("Starting periodic OUI registry sync")
			if err := s.Sync(ctx); err != nil {
				s.logger.Error("Failed to sync OUI registry", logger.Error(err))
			}
		}
	}
}

// Sync downloads and stores the registry
func (s *Syncer) Sync(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("Downloading OUI registry", logger.String("url", s.config.URL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download registry: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	vendors, err := s.parseCSV(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(vendors) == 0 {
		return fmt.Errorf("registry at %s has no assignments", s.config.URL)
	}

	s.logger.Info("Parsed OUI registry", logger.Int("vendors", len(vendors)))

	if err := s.repo.UpsertBatch(vendors, BatchSize); err != nil {
		return fmt.Errorf("failed to save vendors: %w", err)
	}

	count, _ := s.repo.Count()
	s.logger.Info("OUI registry sync complete",
		logger.Int64("total_vendors", count),
		logger.Duration("duration", time.Since(start)))

	return nil
}

// parseCSV parses the IEEE registry format:
// Registry,Assignment,Organization Name,Organization Address
func (s *Syncer) parseCSV(r io.Reader) ([]database.Vendor, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	vendors := make([]database.Vendor, 0, 40000)
	lineNum := 1
	now := time.Now()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			s.logger.Warn("Error reading CSV line",
				logger.Int("line", lineNum),
				logger.Error(err))
			continue
		}

		if len(record) < 3 {
			continue
		}

		assignment := strings.TrimSpace(record[1])
		if len(assignment) != 6 {
			continue
		}
		oui, err := strconv.ParseUint(assignment, 16, 32)
		if err != nil {
			continue
		}

		v := database.Vendor{
			OUI:          uint32(oui),
			UAP:          uint8(oui),
			Registry:     strings.TrimSpace(record[0]),
			Organization: strings.TrimSpace(record[2]),
			UpdatedAt:    now,
		}
		if len(record) > 3 {
			v.Address = strings.TrimSpace(record[3])
		}
		vendors = append(vendors, v)
	}

	return vendors, nil
}
