package models

// LedgerImage records what one submitted screenshot contributed. Failed
// images are kept so a reviewer can see why nothing was read from them.
type LedgerImage struct {
	ID           uint    `gorm:"primaryKey"`
	LedgerID     uint    `gorm:"index;not null"`
	Position     int     `gorm:"not null"`
	Name         string  `gorm:"size:255"`
	Lines        int     `gorm:"not null"`
	Subtotal     float64 `gorm:"not null"`
	Failed       bool    `gorm:"default:false;index"`
	FailedReason string  `gorm:"size:255"`
}
