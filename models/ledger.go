package models

import "time"

// Ledger is one stored reconciliation run.
type Ledger struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    *uint         `gorm:"index"` // nil for anonymous submissions
	Device    string        `gorm:"size:128;not null;default:unknown"`
	Total     float64       `gorm:"not null"`
	Lines     []LedgerLine  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Images    []LedgerImage `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// LedgerLine is one priced item of a ledger.
type LedgerLine struct {
	ID        uint    `gorm:"primaryKey"`
	LedgerID  uint    `gorm:"index;not null;uniqueIndex:idx_ledger_seq"`
	Seq       int     `gorm:"not null;uniqueIndex:idx_ledger_seq"`
	ImageName string  `gorm:"size:255"`
	Cell      int     `gorm:"not null"`
	ItemName  string  `gorm:"size:255;not null"`
	Quantity  int     `gorm:"not null"`
	UnitValue float64 `gorm:"not null"`
	Total     float64 `gorm:"not null"`
}
