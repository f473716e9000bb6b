package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

// LoginAuditRepository appends authentication attempt records.
// The table is append-only; there are no update or delete methods.
type LoginAuditRepository struct {
	db *gorm.DB
}

func NewLoginAuditRepository(db *gorm.DB) *LoginAuditRepository {
	return &LoginAuditRepository{db: db}
}

func (r *LoginAuditRepository) Create(audit *model.LoginAudit) error {
	if err := r.db.Create(audit).Error; err != nil {
		return fmt.Errorf("create login audit failed: %w", err)
	}
	return nil
}

func (r *LoginAuditRepository) ListByUserID(userID uint, limit int) ([]model.LoginAudit, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var audits []model.LoginAudit
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("list login audits failed: %w", err)
	}
	return audits, nil
}
