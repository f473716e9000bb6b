package model

import "time"

type Attachment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  uint      `gorm:"not null;index" json:"message_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	StoredPath string    `gorm:"size:512;not null" json:"-"`
	FileType   string    `gorm:"size:100" json:"file_type"`
	FileSize   int64     `gorm:"not null" json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
}
