package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(chat *model.Chat) error {
	if err := r.db.Create(chat).Error; err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) Update(chat *model.Chat) error {
	if err := r.db.Save(chat).Error; err != nil {
		return fmt.Errorf("update chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListByUserID(userID uint, skip, limit int) ([]model.Chat, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	var chats []model.Chat
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Offset(skip).Limit(limit).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

// GetByIDAndUserID returns nil for chats that do not exist or belong to
// another user; ownership mismatches are indistinguishable from not-found.
func (r *ChatRepository) GetByIDAndUserID(chatID, userID uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.Where("id = ? AND user_id = ?", chatID, userID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

// DeleteCascade removes the chat, its messages, and their attachment rows
// in one transaction. Stored files are the caller's responsibility.
func (r *ChatRepository) DeleteCascade(chatID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Message{}).Select("id").Where("chat_id = ?", chatID)
		if err := tx.Where("message_id IN (?)", sub).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Chat{}, chatID).Error
	})
	if err != nil {
		return fmt.Errorf("delete chat cascade failed: %w", err)
	}
	return nil
}

// Touch bumps the chat's updated_at so list ordering reflects activity.
func (r *ChatRepository) Touch(chatID uint) error {
	if err := r.db.Model(&model.Chat{}).Where("id = ?", chatID).Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
		return fmt.Errorf("touch chat failed: %w", err)
	}
	return nil
}
