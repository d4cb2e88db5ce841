package tipindex

import (
	"time"

	"gorm.io/gorm"
)

// TipRecord is the read-model row of one tip. Amounts are decimal strings so
// the full uint64 range survives signed SQL integer columns.
type TipRecord struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement:false"`
	Tipper         string `gorm:"size:64;index:idx_tip_tipper,priority:1"`
	Artist         string `gorm:"size:64;index:idx_tip_artist,priority:1"`
	Asset          string `gorm:"size:16"`
	Gross          string `gorm:"size:20"`
	Fee            string `gorm:"size:20"`
	Net            string `gorm:"size:20"`
	Height         uint64 `gorm:"index"`
	Receipt        string `gorm:"size:66"`
	CreditedEvents string `gorm:"size:256"`
	Refunded       bool   `gorm:"index"`
	RefundHeight   uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName pins the table name across drivers.
func (TipRecord) TableName() string { return "tip_records" }

// BatchRecord summarises one batch send.
type BatchRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Tipper       string `gorm:"size:64;index"`
	Entries      int
	Committed    int
	AllSucceeded bool
	ErrorCode    string `gorm:"size:32"`
	TipIDs       string `gorm:"size:256"`
	Height       uint64
	CreatedAt    time.Time
}

func (BatchRecord) TableName() string { return "batch_records" }

// AutoMigrate creates or updates the index schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TipRecord{}, &BatchRecord{})
}
