package database

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Piconet is one LAP seen during a scan, with its packet statistics
type Piconet struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	ScanID         string    `gorm:"index;size:36;not null" json:"scan_id"`
	LAP            uint32    `gorm:"index;not null" json:"lap"`
	UAP            uint8     `json:"uap"`
	UAPKnown       bool      `json:"uap_known"`
	FirstOffset    int64     `gorm:"not null" json:"first_offset"` // bit offset into the capture
	LastOffset     int64     `gorm:"not null" json:"last_offset"`
	PacketCount    int       `gorm:"default:0" json:"packet_count"`
	HeadersDecoded int       `gorm:"default:0" json:"headers_decoded"`
	HECValid       int       `gorm:"default:0" json:"hec_valid"`
	HECFailed      int       `gorm:"default:0" json:"hec_failed"`
	PacketTypes    string    `gorm:"size:128" json:"packet_types"` // comma separated
	FirstSeen      time.Time `gorm:"index;not null" json:"first_seen"`
	LastSeen       time.Time `gorm:"not null" json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for Piconet
func (Piconet) TableName() string {
	return "piconets"
}

// BeforeCreate hook to ensure FirstSeen and LastSeen are set
func (p *Piconet) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.FirstSeen.IsZero() {
		p.FirstSeen = time.Now()
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.FirstSeen
	}
	return nil
}

// Types returns the packet type names seen on the piconet
func (p *Piconet) Types() []string {
	if p.PacketTypes == "" {
		return nil
	}
	return strings.Split(p.PacketTypes, ",")
}

// PacketRecord is a single access code hit and its decoded header
type PacketRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	PacketID      string    `gorm:"uniqueIndex;size:36;not null" json:"packet_id"`
	ScanID        string    `gorm:"index;size:36;not null" json:"scan_id"`
	Offset        int64     `gorm:"not null" json:"offset"`
	LAP           uint32    `gorm:"index;not null" json:"lap"`
	HeaderDecoded bool      `json:"header_decoded"`
	Type          string    `gorm:"index;size:16" json:"type"`
	LTAddr        uint8     `json:"lt_addr"`
	Flow          uint8     `json:"flow"`
	ARQN          uint8     `json:"arqn"`
	SEQN          uint8     `json:"seqn"`
	HEC           uint8     `json:"hec"`
	HECChecked    bool      `json:"hec_checked"`
	HECValid      bool      `json:"hec_valid"`
	Clock         uint8     `json:"clock"`
	ClockKnown    bool      `json:"clock_known"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for PacketRecord
func (PacketRecord) TableName() string {
	return "packets"
}

// Vendor is one IEEE MA-L assignment. The low octet of an OUI is the UAP
// of every BD_ADDR issued under it.
type Vendor struct {
	OUI          uint32    `gorm:"primarykey;autoIncrement:false;not null" json:"oui"`
	UAP          uint8     `gorm:"index;not null" json:"uap"`
	Registry     string    `gorm:"size:10" json:"registry"`
	Organization string    `gorm:"index;size:200" json:"organization"`
	Address      string    `gorm:"size:300" json:"address"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Vendor
func (Vendor) TableName() string {
	return "vendors"
}
