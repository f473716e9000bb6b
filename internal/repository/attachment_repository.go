package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(attachment *model.Attachment) error {
	if err := r.db.Create(attachment).Error; err != nil {
		return fmt.Errorf("create attachment failed: %w", err)
	}
	return nil
}

func (r *AttachmentRepository) GetByID(id uint) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := r.db.First(&attachment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query attachment failed: %w", err)
	}
	return &attachment, nil
}

func (r *AttachmentRepository) ListByMessageID(messageID uint) ([]model.Attachment, error) {
	var attachments []model.Attachment
	if err := r.db.Where("message_id = ?", messageID).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("list attachments failed: %w", err)
	}
	return attachments, nil
}

// ListByChatID collects the attachments of every message in the chat,
// used to remove stored files before a cascade delete.
func (r *AttachmentRepository) ListByChatID(chatID uint) ([]model.Attachment, error) {
	var attachments []model.Attachment
	sub := r.db.Model(&model.Message{}).Select("id").Where("chat_id = ?", chatID)
	if err := r.db.Where("message_id IN (?)", sub).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("list chat attachments failed: %w", err)
	}
	return attachments, nil
}

// ListAfterSequence collects attachments of messages past the sequence,
// used to remove stored files before history truncation.
func (r *AttachmentRepository) ListAfterSequence(chatID uint, sequence int) ([]model.Attachment, error) {
	var attachments []model.Attachment
	sub := r.db.Model(&model.Message{}).Select("id").
		Where("chat_id = ? AND sequence > ?", chatID, sequence)
	if err := r.db.Where("message_id IN (?)", sub).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("list attachments after sequence failed: %w", err)
	}
	return attachments, nil
}

func (r *AttachmentRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Attachment{}, id).Error; err != nil {
		return fmt.Errorf("delete attachment failed: %w", err)
	}
	return nil
}
