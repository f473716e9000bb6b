package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ai-chatbot/internal/ai"
	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
)

type fakeFileStore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeFileStore) Delete(storedPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, storedPath)
	return nil
}

func (f *fakeFileStore) allDeleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newTestChatService(t *testing.T, db *gorm.DB, llmBaseURL string) (*ChatService, *fakeFileStore) {
	t.Helper()
	store := &fakeFileStore{}
	svc := NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		repository.NewAttachmentRepository(db),
		nil,
		store,
		ai.ChatConfig{BaseURL: llmBaseURL, Model: "test-model"},
		50,
	)
	return svc, store
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(user))
	return user
}

// sseUpstream serves an OpenAI-style streaming completion built from the
// given tokens.
func sseUpstream(t *testing.T, tokens []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Stream bool `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, token := range tokens {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]string{"content": token}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestAppendMessageAssignsSequence(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")

	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID, Title: "first"})
	require.NoError(t, err)

	for i, role := range []string{model.RoleUser, model.RoleAssistant, model.RoleUser} {
		message, err := svc.AppendMessage(context.Background(), AppendMessageInput{
			UserID:  user.ID,
			ChatID:  chat.ID,
			Role:    role,
			Content: fmt.Sprintf("message %d", i+1),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, message.Sequence)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: user.ID, ChatID: chat.ID, Role: "robot", Content: "hi",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: user.ID, ChatID: chat.ID, Role: model.RoleUser, Content: "   ",
	})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestAppendMessageOwnership(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	chat, err := svc.CreateChat(CreateChatInput{UserID: alice.ID})
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: bob.ID, ChatID: chat.ID, Role: model.RoleUser, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrChatNotFound, "another user's chat reads as not-found")
}

func TestFirstUserMessageAutoTitles(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	long := strings.Repeat("hello world ", 10)
	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: user.ID, ChatID: chat.ID, Role: model.RoleUser, Content: long,
	})
	require.NoError(t, err)

	reloaded, _, err := svc.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(long)[:30]+"...", reloaded.Title)
}

func TestAutoTitleKeepsExistingTitle(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID, Title: "my title"})
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: user.ID, ChatID: chat.ID, Role: model.RoleUser, Content: "hello",
	})
	require.NoError(t, err)

	reloaded, _, err := svc.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "my title", reloaded.Title)
}

func TestStreamReplyPersistsAssembledReply(t *testing.T) {
	upstream := sseUpstream(t, []string{"Hel", "lo", " there"})
	defer upstream.Close()

	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, upstream.URL)
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	var chunks []string
	assistant, err := svc.StreamReply(context.Background(), StreamReplyInput{
		UserID:  user.ID,
		ChatID:  chat.ID,
		Content: "hi",
	}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", " there"}, chunks)
	assert.Equal(t, model.RoleAssistant, assistant.Role)
	assert.Equal(t, "Hello there", assistant.Content, "assembled reply persisted verbatim")
	assert.Equal(t, 2, assistant.Sequence)

	_, messages, err := svc.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestStreamReplyUpstreamFailurePersistsNoReply(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, upstream.URL)
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	_, err = svc.StreamReply(context.Background(), StreamReplyInput{
		UserID:  user.ID,
		ChatID:  chat.ID,
		Content: "hi",
	}, func(string) error { return nil })
	require.Error(t, err)

	_, messages, err := svc.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1, "only the user message survives a failed stream")
	assert.Equal(t, model.RoleUser, messages[0].Role)
}

func TestStreamReplyEditTruncatesBranch(t *testing.T) {
	upstream := sseUpstream(t, []string{"regenerated"})
	defer upstream.Close()

	db := newTestDB(t)
	svc, store := newTestChatService(t, db, upstream.URL)
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	seed := []struct {
		role    string
		content string
	}{
		{model.RoleUser, "question one"},
		{model.RoleAssistant, "answer one"},
		{model.RoleUser, "question two"},
		{model.RoleAssistant, "answer two"},
	}
	var seeded []*model.Message
	for _, m := range seed {
		message, err := svc.AppendMessage(context.Background(), AppendMessageInput{
			UserID: user.ID, ChatID: chat.ID, Role: m.role, Content: m.content,
		})
		require.NoError(t, err)
		seeded = append(seeded, message)
	}

	// An attachment on a message in the branch being abandoned.
	attachment := &model.Attachment{
		MessageID:  seeded[3].ID,
		Filename:   "notes.txt",
		StoredPath: "/tmp/uploads/notes.txt",
		FileType:   "text/plain",
		FileSize:   3,
	}
	require.NoError(t, repository.NewAttachmentRepository(db).Create(attachment))

	assistant, err := svc.StreamReply(context.Background(), StreamReplyInput{
		UserID:       user.ID,
		ChatID:       chat.ID,
		Content:      "question one, revised",
		EditSequence: 1,
	}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, assistant.Sequence)

	_, messages, err := svc.GetChat(context.Background(), user.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "question one, revised", messages[0].Content)
	assert.Equal(t, 1, messages[0].Sequence)
	assert.Equal(t, "regenerated", messages[1].Content)

	assert.Contains(t, store.allDeleted(), "/tmp/uploads/notes.txt", "abandoned attachment file removed")
}

func TestStreamReplyEditRejectsNonUserMessage(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "http://127.0.0.1:1")
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)

	for _, m := range []struct{ role, content string }{
		{model.RoleUser, "question"},
		{model.RoleAssistant, "answer"},
	} {
		_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
			UserID: user.ID, ChatID: chat.ID, Role: m.role, Content: m.content,
		})
		require.NoError(t, err)
	}

	_, err = svc.StreamReply(context.Background(), StreamReplyInput{
		UserID:       user.ID,
		ChatID:       chat.ID,
		Content:      "rewrite the answer",
		EditSequence: 2,
	}, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNotUserMessage)
}

// Setup failures surface from PrepareStream, before the LLM is contacted;
// the upstream here is unreachable on purpose.
func TestPrepareStreamSurfacesSetupErrors(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "http://127.0.0.1:1")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	chat, err := svc.CreateChat(CreateChatInput{UserID: alice.ID})
	require.NoError(t, err)

	_, err = svc.PrepareStream(context.Background(), StreamReplyInput{
		UserID: alice.ID, ChatID: chat.ID + 99, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrChatNotFound)

	_, err = svc.PrepareStream(context.Background(), StreamReplyInput{
		UserID: bob.ID, ChatID: chat.ID, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrChatNotFound, "another user's chat reads as not-found")

	_, err = svc.PrepareStream(context.Background(), StreamReplyInput{
		UserID: alice.ID, ChatID: chat.ID, Content: "   ",
	})
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = svc.PrepareStream(context.Background(), StreamReplyInput{
		UserID: alice.ID, ChatID: chat.ID, Content: "hi", EditSequence: 5,
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteChatCascades(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")

	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID})
	require.NoError(t, err)
	keep, err := svc.CreateChat(CreateChatInput{UserID: user.ID, Title: "keep"})
	require.NoError(t, err)

	message, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID: user.ID, ChatID: chat.ID, Role: model.RoleUser, Content: "hello",
	})
	require.NoError(t, err)

	attachment := &model.Attachment{
		MessageID:  message.ID,
		Filename:   "a.txt",
		StoredPath: "/tmp/uploads/a.txt",
		FileType:   "text/plain",
		FileSize:   1,
	}
	require.NoError(t, repository.NewAttachmentRepository(db).Create(attachment))

	require.NoError(t, svc.DeleteChat(context.Background(), user.ID, chat.ID))

	_, _, err = svc.GetChat(context.Background(), user.ID, chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)

	var messageCount, attachmentCount int64
	require.NoError(t, db.Model(&model.Message{}).Where("chat_id = ?", chat.ID).Count(&messageCount).Error)
	require.NoError(t, db.Model(&model.Attachment{}).Count(&attachmentCount).Error)
	assert.Zero(t, messageCount)
	assert.Zero(t, attachmentCount)
	assert.Equal(t, []string{"/tmp/uploads/a.txt"}, store.allDeleted())

	_, _, err = svc.GetChat(context.Background(), user.ID, keep.ID)
	assert.NoError(t, err, "other chats untouched")
}

func TestGetChatOwnership(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	chat, err := svc.CreateChat(CreateChatInput{UserID: alice.ID})
	require.NoError(t, err)

	_, _, err = svc.GetChat(context.Background(), bob.ID, chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestUpdateChatPartial(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestChatService(t, db, "")
	user := createTestUser(t, db, "alice")
	chat, err := svc.CreateChat(CreateChatInput{UserID: user.ID, Title: "before", Model: "gpt-4"})
	require.NoError(t, err)

	archived := true
	updated, err := svc.UpdateChat(user.ID, chat.ID, UpdateChatInput{IsArchived: &archived})
	require.NoError(t, err)
	assert.Equal(t, "before", updated.Title, "unset fields untouched")
	assert.Equal(t, "gpt-4", updated.Model)
	assert.True(t, updated.IsArchived)

	title := "after"
	updated, err = svc.UpdateChat(user.ID, chat.ID, UpdateChatInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.True(t, updated.IsArchived)
}
