package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Use modernc.org/sqlite (pure Go, no CGO)
	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

const (
	defaultPath   = "btbb-nexus.db"
	slowThreshold = 200 * time.Millisecond
)

// captureTables lists the models migrated into the capture store
var captureTables = []interface{}{&Piconet{}, &PacketRecord{}, &Vendor{}}

// Scans write packets in batches while the dashboard reads piconets, so the
// store runs in WAL mode and waits on the write lock instead of failing.
var pragmas = []struct {
	name string
	stmt string
}{
	{"journal_mode", "PRAGMA journal_mode=WAL"},
	{"synchronous", "PRAGMA synchronous=NORMAL"},
	{"busy_timeout", "PRAGMA busy_timeout=5000"},
}

// DB is the capture store holding piconets, decoded packets and OUI vendors
type DB struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Config holds database configuration
type Config struct {
	Path string // SQLite file; parent directories are created
}

// TableCounts reports the number of rows in each capture table
type TableCounts struct {
	Piconets int64 `json:"piconets"`
	Packets  int64 `json:"packets"`
	Vendors  int64 `json:"vendors"`
}

// NewDB opens the capture store and migrates its tables
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	log = log.WithComponent("database")
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create capture store directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}, &gorm.Config{
		Logger: gormlogger.New(&gormLogAdapter{log: log}, gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture store %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}

	if err := db.AutoMigrate(captureTables...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate piconet, packet and vendor tables: %w", err)
	}

	d := &DB{db: db, logger: log}
	counts, err := d.Counts()
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("Capture store opened",
		logger.String("path", cfg.Path),
		logger.Int64("piconets", counts.Piconets),
		logger.Int64("packets", counts.Packets),
		logger.Int64("vendors", counts.Vendors))

	return d, nil
}

// Counts returns the row count of every capture table
func (d *DB) Counts() (TableCounts, error) {
	var c TableCounts
	for _, t := range []struct {
		model interface{}
		dst   *int64
	}{
		{&Piconet{}, &c.Piconets},
		{&PacketRecord{}, &c.Packets},
		{&Vendor{}, &c.Vendors},
	} {
		if err := d.db.Model(t.model).Count(t.dst).Error; err != nil {
			return c, fmt.Errorf("failed to count %T rows: %w", t.model, err)
		}
	}
	return c, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database instance
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLogAdapter reports slow queries and SQL errors on the database component
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Warn("SQL", logger.String("detail", fmt.Sprintf(format, args...)))
}
