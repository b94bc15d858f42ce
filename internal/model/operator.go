package model

import (
	"time"

	"github.com/google/uuid"
)

// Operator stores front-desk staff accounts with role-based access.
// Role: "receptionist" | "admin" | "superadmin"
type Operator struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	FullName     string    `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	// BranchCode restricts a receptionist to one hotel branch; nil = all branches
	BranchCode *string `gorm:"type:varchar(20)"`
	Active     bool    `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
