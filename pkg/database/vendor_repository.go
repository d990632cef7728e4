package database

import (
	"gorm.io/gorm"
)

// VendorRepository handles OUI vendor database operations
type VendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// Upsert creates or updates a vendor record
func (r *VendorRepository) Upsert(v *Vendor) error {
	return r.db.Save(v).Error
}

// UpsertBatch upserts vendors in a single transaction
func (r *VendorRepository) UpsertBatch(vendors []Vendor, batchSize int) error {
	if len(vendors) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(vendors); i += batchSize {
			end := i + batchSize
			if end > len(vendors) {
				end = len(vendors)
			}
			batch := vendors[i:end]
			if err := tx.Save(&batch).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByOUI retrieves a vendor by its 24-bit OUI
func (r *VendorRepository) GetByOUI(oui uint32) (*Vendor, error) {
	var v Vendor
	if err := r.db.Where("oui = ?", oui).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByUAP lists the vendors whose OUIs could have produced a UAP
func (r *VendorRepository) GetByUAP(uap uint8, limit int) ([]Vendor, error) {
	var vendors []Vendor
	err := r.db.Where("uap = ?", uap).
		Order("organization ASC").
		Limit(limit).
		Find(&vendors).Error
	return vendors, err
}

// Count returns the total number of vendors in the database
func (r *VendorRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Vendor{}).Count(&count).Error
	return count, err
}

// DeleteAll removes all vendors from the database
func (r *VendorRepository) DeleteAll() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Vendor{}).Error
}
