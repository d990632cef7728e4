package database

import (
	"time"

	"gorm.io/gorm"
)

// PiconetRepository handles piconet database operations
type PiconetRepository struct {
	db *gorm.DB
}

// NewPiconetRepository creates a new piconet repository
func NewPiconetRepository(db *gorm.DB) *PiconetRepository {
	return &PiconetRepository{db: db}
}

// Create adds a new piconet record
func (r *PiconetRepository) Create(p *Piconet) error {
	return r.db.Create(p).Error
}

// GetRecent retrieves the most recent N piconets
func (r *PiconetRepository) GetRecent(limit int) ([]Piconet, error) {
	var piconets []Piconet
	err := r.db.Order("first_seen DESC, id DESC").Limit(limit).Find(&piconets).Error
	return piconets, err
}

// GetByLAP retrieves piconet records for a LAP across scans
func (r *PiconetRepository) GetByLAP(lap uint32, limit int) ([]Piconet, error) {
	var piconets []Piconet
	err := r.db.Where("lap = ?", lap).
		Order("first_seen DESC, id DESC").
		Limit(limit).
		Find(&piconets).Error
	return piconets, err
}

// GetByScan retrieves all piconets found by one scan
func (r *PiconetRepository) GetByScan(scanID string) ([]Piconet, error) {
	var piconets []Piconet
	err := r.db.Where("scan_id = ?", scanID).
		Order("first_offset ASC").
		Find(&piconets).Error
	return piconets, err
}

// DeleteOlderThan deletes piconets first seen before the specified time
func (r *PiconetRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("first_seen < ?", before).Delete(&Piconet{})
	return result.RowsAffected, result.Error
}

// PacketRepository handles packet database operations
type PacketRepository struct {
	db *gorm.DB
}

// NewPacketRepository creates a new packet repository
func NewPacketRepository(db *gorm.DB) *PacketRepository {
	return &PacketRepository{db: db}
}

// Create adds a new packet record
func (r *PacketRepository) Create(p *PacketRecord) error {
	return r.db.Create(p).Error
}

// CreateBatch inserts packets in a single transaction
func (r *PacketRepository) CreateBatch(packets []PacketRecord, batchSize int) error {
	if len(packets) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&packets, batchSize).Error
	})
}

// GetRecent retrieves the most recently stored N packets
func (r *PacketRepository) GetRecent(limit int) ([]PacketRecord, error) {
	var packets []PacketRecord
	err := r.db.Order("id DESC").Limit(limit).Find(&packets).Error
	return packets, err
}

// GetByLAP retrieves packets for a LAP, newest first
func (r *PacketRepository) GetByLAP(lap uint32, limit int) ([]PacketRecord, error) {
	var packets []PacketRecord
	err := r.db.Where("lap = ?", lap).
		Order("id DESC").
		Limit(limit).
		Find(&packets).Error
	return packets, err
}

// CountByType returns decoded header counts per packet type name
func (r *PacketRepository) CountByType() (map[string]int64, error) {
	var rows []struct {
		Type  string
		Count int64
	}
	err := r.db.Model(&PacketRecord{}).
		Select("type, COUNT(*) AS count").
		Where("header_decoded = ?", true).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

// Count returns the total number of stored packets
func (r *PacketRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&PacketRecord{}).Count(&count).Error
	return count, err
}

// DeleteOlderThan deletes packets stored before the specified time
func (r *PacketRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&PacketRecord{})
	return result.RowsAffected, result.Error
}
