package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) CreateVerification(token *model.VerificationToken) error {
	if err := r.db.Create(token).Error; err != nil {
		return fmt.Errorf("create verification token failed: %w", err)
	}
	return nil
}

// GetVerification returns the token row, or nil when missing or expired.
func (r *TokenRepository) GetVerification(token string) (*model.VerificationToken, error) {
	var row model.VerificationToken
	if err := r.db.Where("token = ?", token).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query verification token failed: %w", err)
	}
	if time.Now().After(row.ExpiresAt) {
		return nil, nil
	}
	return &row, nil
}

func (r *TokenRepository) DeleteVerification(id uint) error {
	if err := r.db.Delete(&model.VerificationToken{}, id).Error; err != nil {
		return fmt.Errorf("delete verification token failed: %w", err)
	}
	return nil
}

// CreatePasswordReset replaces any outstanding reset tokens for the user.
func (r *TokenRepository) CreatePasswordReset(token *model.PasswordResetToken) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", token.UserID).Delete(&model.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return fmt.Errorf("create password reset token failed: %w", err)
	}
	return nil
}

// GetPasswordReset returns the token row, or nil when missing or expired.
func (r *TokenRepository) GetPasswordReset(token string) (*model.PasswordResetToken, error) {
	var row model.PasswordResetToken
	if err := r.db.Where("token = ?", token).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query password reset token failed: %w", err)
	}
	if time.Now().After(row.ExpiresAt) {
		return nil, nil
	}
	return &row, nil
}

func (r *TokenRepository) DeletePasswordReset(id uint) error {
	if err := r.db.Delete(&model.PasswordResetToken{}, id).Error; err != nil {
		return fmt.Errorf("delete password reset token failed: %w", err)
	}
	return nil
}
