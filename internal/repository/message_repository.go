package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) Update(message *model.Message) error {
	if err := r.db.Save(message).Error; err != nil {
		return fmt.Errorf("update message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByChatID(chatID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("chat_id = ?", chatID).Order("sequence ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) GetByID(messageID uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) GetByIDAndChatID(messageID, chatID uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("id = ? AND chat_id = ?", messageID, chatID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) GetBySequence(chatID uint, sequence int) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("chat_id = ? AND sequence = ?", chatID, sequence).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message by sequence failed: %w", err)
	}
	return &message, nil
}

// MaxSequence returns 0 for a chat with no messages.
func (r *MessageRepository) MaxSequence(chatID uint) (int, error) {
	var max int
	err := r.db.Model(&model.Message{}).Where("chat_id = ?", chatID).
		Select("COALESCE(MAX(sequence), 0)").Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("query max sequence failed: %w", err)
	}
	return max, nil
}

// DeleteAfterSequence removes every message in the chat with a sequence
// greater than the given one, along with their attachment rows.
func (r *MessageRepository) DeleteAfterSequence(chatID uint, sequence int) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Message{}).Select("id").
			Where("chat_id = ? AND sequence > ?", chatID, sequence)
		if err := tx.Where("message_id IN (?)", sub).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ? AND sequence > ?", chatID, sequence).Delete(&model.Message{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete messages after sequence failed: %w", err)
	}
	return nil
}
