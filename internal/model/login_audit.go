package model

import "time"

// LoginAudit is an append-only record of an authentication attempt.
// Rows are never updated or deleted by the application.
type LoginAudit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	IPAddress string    `gorm:"size:45;not null" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	Success   bool      `gorm:"not null" json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
