package app

import (
	"errors"
	"io"

	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
	"ai-chatbot/internal/storage"
)

var ErrAttachmentNotFound = errors.New("attachment not found")

// BlobStore is the attachment backing store.
type BlobStore interface {
	Validate(filename string, size int64) error
	Save(r io.Reader, filename string) (*storage.SavedFile, error)
	Delete(storedPath string) error
}

type AttachmentService struct {
	attachmentRepo *repository.AttachmentRepository
	messageRepo    *repository.MessageRepository
	chatRepo       *repository.ChatRepository
	store          BlobStore
}

type UploadAttachmentInput struct {
	UserID    uint
	ChatID    uint
	MessageID uint
	Filename  string
	Size      int64
	Reader    io.Reader
}

func NewAttachmentService(
	attachmentRepo *repository.AttachmentRepository,
	messageRepo *repository.MessageRepository,
	chatRepo *repository.ChatRepository,
	store BlobStore,
) *AttachmentService {
	return &AttachmentService{
		attachmentRepo: attachmentRepo,
		messageRepo:    messageRepo,
		chatRepo:       chatRepo,
		store:          store,
	}
}

func (s *AttachmentService) Upload(input UploadAttachmentInput) (*model.Attachment, error) {
	if input.UserID == 0 || input.ChatID == 0 || input.MessageID == 0 || input.Filename == "" {
		return nil, ErrInvalidInput
	}

	chat, err := s.chatRepo.GetByIDAndUserID(input.ChatID, input.UserID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	message, err := s.messageRepo.GetByIDAndChatID(input.MessageID, input.ChatID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}

	if err := s.store.Validate(input.Filename, input.Size); err != nil {
		return nil, err
	}
	saved, err := s.store.Save(input.Reader, input.Filename)
	if err != nil {
		return nil, err
	}

	attachment := &model.Attachment{
		MessageID:  message.ID,
		Filename:   input.Filename,
		StoredPath: saved.StoredPath,
		FileType:   saved.MimeType,
		FileSize:   saved.Size,
	}
	if err := s.attachmentRepo.Create(attachment); err != nil {
		_ = s.store.Delete(saved.StoredPath)
		return nil, err
	}
	return attachment, nil
}

// ListForMessage returns the attachments on a message, after checking the
// chat belongs to the caller.
func (s *AttachmentService) ListForMessage(userID, chatID, messageID uint) ([]model.Attachment, error) {
	if userID == 0 || chatID == 0 || messageID == 0 {
		return nil, ErrInvalidInput
	}

	chat, err := s.chatRepo.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	message, err := s.messageRepo.GetByIDAndChatID(messageID, chatID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}

	return s.attachmentRepo.ListByMessageID(messageID)
}

// Get resolves the attachment after walking message → chat to enforce
// ownership; another user's attachment reads as not-found.
func (s *AttachmentService) Get(userID, attachmentID uint) (*model.Attachment, error) {
	if userID == 0 || attachmentID == 0 {
		return nil, ErrInvalidInput
	}
	attachment, err := s.attachmentRepo.GetByID(attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, ErrAttachmentNotFound
	}

	message, err := s.messageRepo.GetByID(attachment.MessageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrAttachmentNotFound
	}
	chat, err := s.chatRepo.GetByIDAndUserID(message.ChatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrAttachmentNotFound
	}
	return attachment, nil
}

func (s *AttachmentService) Delete(userID, attachmentID uint) error {
	attachment, err := s.Get(userID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.attachmentRepo.Delete(attachment.ID); err != nil {
		return err
	}
	return s.store.Delete(attachment.StoredPath)
}
