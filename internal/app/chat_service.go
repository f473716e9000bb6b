package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"ai-chatbot/internal/ai"
	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrNotUserMessage  = errors.New("only user messages can be edited")
	ErrLLMConfig       = errors.New("llm config is invalid")
)

const autoTitleLimit = 30

// HistoryCache is the read-through cache for chat message history.
type HistoryCache interface {
	GetHistory(ctx context.Context, chatID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, chatID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, chatID uint) error
	MarkDirty(ctx context.Context, chatID uint) error
	IsDirty(ctx context.Context, chatID uint) (bool, error)
}

// FileStore removes stored attachment blobs when their rows go away.
type FileStore interface {
	Delete(storedPath string) error
}

type ChatService struct {
	chatRepo       *repository.ChatRepository
	messageRepo    *repository.MessageRepository
	attachmentRepo *repository.AttachmentRepository
	historyCache   HistoryCache
	fileStore      FileStore
	llmClient      *ai.OpenAICompatibleClient
	llm            ai.ChatConfig
	maxContext     int
}

type CreateChatInput struct {
	UserID uint
	Title  string
	Model  string
}

type UpdateChatInput struct {
	Title      *string
	Model      *string
	IsArchived *bool
}

type AppendMessageInput struct {
	UserID  uint
	ChatID  uint
	Role    string
	Content string
}

type StreamReplyInput struct {
	UserID       uint
	ChatID       uint
	Content      string
	EditSequence int // 0 appends; >0 replaces that message and truncates after it
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	attachmentRepo *repository.AttachmentRepository,
	historyCache HistoryCache,
	fileStore FileStore,
	llm ai.ChatConfig,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 50
	}
	return &ChatService{
		chatRepo:       chatRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		historyCache:   historyCache,
		fileStore:      fileStore,
		llmClient:      ai.NewOpenAICompatibleClient(),
		llm:            llm,
		maxContext:     maxContext,
	}
}

func (s *ChatService) CreateChat(input CreateChatInput) (*model.Chat, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	chat := &model.Chat{
		UserID: input.UserID,
		Title:  strings.TrimSpace(input.Title),
		Model:  strings.TrimSpace(input.Model),
	}
	if err := s.chatRepo.Create(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) ListChats(userID uint, skip, limit int) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chatRepo.ListByUserID(userID, skip, limit)
}

// GetChat returns the chat and its messages ordered by sequence. History
// is served from the cache when present and clean.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID uint) (*model.Chat, []model.Message, error) {
	if userID == 0 || chatID == 0 {
		return nil, nil, ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, ErrChatNotFound
	}

	messages, err := s.loadHistory(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	return chat, messages, nil
}

func (s *ChatService) UpdateChat(userID, chatID uint, input UpdateChatInput) (*model.Chat, error) {
	if userID == 0 || chatID == 0 {
		return nil, ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if input.Title != nil {
		chat.Title = strings.TrimSpace(*input.Title)
	}
	if input.Model != nil {
		chat.Model = strings.TrimSpace(*input.Model)
	}
	if input.IsArchived != nil {
		chat.IsArchived = *input.IsArchived
	}
	if err := s.chatRepo.Update(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat removes the chat, its messages, attachment rows, and the
// stored attachment files.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if userID == 0 || chatID == 0 {
		return ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ErrChatNotFound
	}

	attachments, err := s.attachmentRepo.ListByChatID(chatID)
	if err != nil {
		return err
	}
	if err := s.chatRepo.DeleteCascade(chatID); err != nil {
		return err
	}
	s.removeFiles(attachments)

	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, chatID)
	}
	return nil
}

// AppendMessage adds a message with the next sequence. The first user
// message auto-titles an untitled chat.
func (s *ChatService) AppendMessage(ctx context.Context, input AppendMessageInput) (*model.Message, error) {
	if input.UserID == 0 || input.ChatID == 0 {
		return nil, ErrInvalidInput
	}
	if !model.ValidRole(input.Role) {
		return nil, ErrInvalidRole
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	chat, err := s.chatRepo.GetByIDAndUserID(input.ChatID, input.UserID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	s.invalidateHistory(ctx, input.ChatID)

	message, err := s.appendMessage(chat, input.Role, content)
	if err != nil {
		return nil, err
	}
	return message, nil
}

// StreamSession carries the conversation state between PrepareStream and
// Stream, so a caller can fail with a plain HTTP status before any SSE
// bytes go out.
type StreamSession struct {
	svc    *ChatService
	chat   *model.Chat
	prompt []ai.ChatMessage
}

// PrepareStream validates the request, resolves the chat, applies the user
// message (append, or edit-truncate when EditSequence is set), and loads
// the prompt history. Every sentinel a handler maps to a status code
// surfaces here, before the stream starts.
func (s *ChatService) PrepareStream(ctx context.Context, input StreamReplyInput) (*StreamSession, error) {
	if input.UserID == 0 || input.ChatID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	chat, err := s.chatRepo.GetByIDAndUserID(input.ChatID, input.UserID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	if s.llm.BaseURL == "" || s.llm.Model == "" {
		return nil, ErrLLMConfig
	}

	s.invalidateHistory(ctx, input.ChatID)

	if input.EditSequence > 0 {
		if err := s.truncateAndReplace(chat, input.EditSequence, content); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.appendMessage(chat, model.RoleUser, content); err != nil {
			return nil, err
		}
	}

	history, err := s.messageRepo.ListByChatID(input.ChatID)
	if err != nil {
		return nil, err
	}
	return &StreamSession{svc: s, chat: chat, prompt: buildPrompt(history, s.maxContext)}, nil
}

// Stream relays the completion through onChunk and persists the assembled
// assistant reply. On upstream failure nothing is persisted and the
// partial output is discarded.
func (sess *StreamSession) Stream(ctx context.Context, onChunk func(chunk string) error) (*model.Message, error) {
	s := sess.svc
	full, err := s.llmClient.StreamComplete(ctx, s.llm, sess.prompt, onChunk)
	if err != nil {
		return nil, err
	}

	s.invalidateHistory(ctx, sess.chat.ID)

	assistant, err := s.appendMessage(sess.chat, model.RoleAssistant, full)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.Touch(sess.chat.ID); err != nil {
		log.Printf("touch chat failed: %v", err)
	}
	return assistant, nil
}

// StreamReply is the one-shot form of PrepareStream followed by Stream.
func (s *ChatService) StreamReply(
	ctx context.Context,
	input StreamReplyInput,
	onChunk func(chunk string) error,
) (*model.Message, error) {
	sess, err := s.PrepareStream(ctx, input)
	if err != nil {
		return nil, err
	}
	return sess.Stream(ctx, onChunk)
}

func (s *ChatService) appendMessage(chat *model.Chat, role, content string) (*model.Message, error) {
	max, err := s.messageRepo.MaxSequence(chat.ID)
	if err != nil {
		return nil, err
	}

	message := &model.Message{
		ChatID:   chat.ID,
		Role:     role,
		Content:  content,
		Sequence: max + 1,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}

	if message.Sequence == 1 && role == model.RoleUser && chat.Title == "" {
		chat.Title = autoTitle(content)
		if err := s.chatRepo.Update(chat); err != nil {
			log.Printf("auto-title chat failed: %v", err)
		}
	}
	return message, nil
}

// truncateAndReplace rewrites the user message at the given sequence and
// deletes every later message; the abandoned branch's attachment files go
// with it.
func (s *ChatService) truncateAndReplace(chat *model.Chat, sequence int, content string) error {
	target, err := s.messageRepo.GetBySequence(chat.ID, sequence)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMessageNotFound
	}
	if target.Role != model.RoleUser {
		return ErrNotUserMessage
	}

	orphaned, err := s.attachmentRepo.ListAfterSequence(chat.ID, sequence)
	if err != nil {
		return err
	}
	if err := s.messageRepo.DeleteAfterSequence(chat.ID, sequence); err != nil {
		return err
	}
	s.removeFiles(orphaned)

	target.Content = content
	return s.messageRepo.Update(target)
}

func (s *ChatService) loadHistory(ctx context.Context, chatID uint) ([]model.Message, error) {
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, chatID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, chatID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messageRepo.ListByChatID(chatID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, chatID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, chatID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, chatID)
	_ = s.historyCache.DeleteHistory(ctx, chatID)
}

func (s *ChatService) removeFiles(attachments []model.Attachment) {
	if s.fileStore == nil {
		return
	}
	for _, a := range attachments {
		if err := s.fileStore.Delete(a.StoredPath); err != nil {
			log.Printf("delete attachment file failed: %v", err)
		}
	}
}

func buildPrompt(history []model.Message, maxContext int) []ai.ChatMessage {
	if maxContext > 0 && len(history) > maxContext {
		history = history[len(history)-maxContext:]
	}
	prompt := make([]ai.ChatMessage, 0, len(history))
	for _, m := range history {
		prompt = append(prompt, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return prompt
}

func autoTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= autoTitleLimit {
		return content
	}
	return string(runes[:autoTitleLimit]) + "..."
}
