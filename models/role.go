package models

import "time"

// Role names seeded at migration time.
const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// Role is a master record referenced by users. Administrators may read every
// ledger; regular users only their own.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// DefaultRoles lists the roles every database starts with.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdministrator, Description: "reads all ledgers"},
		{Name: RoleUser, Description: "reads own ledgers"},
	}
}
