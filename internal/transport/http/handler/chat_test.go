package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ai-chatbot/internal/ai"
	"ai-chatbot/internal/app"
	"ai-chatbot/internal/model"
	"ai-chatbot/internal/pkg/jwtutil"
	"ai-chatbot/internal/repository"
	"ai-chatbot/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.Attachment{},
	))
	return db
}

func newChatRouter(t *testing.T, db *gorm.DB, llmBaseURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chatService := app.NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		repository.NewAttachmentRepository(db),
		nil,
		nil,
		ai.ChatConfig{BaseURL: llmBaseURL, Model: "test-model"},
		50,
	)
	chatHandler := NewChatHandler(chatService)

	router := gin.New()
	chats := router.Group("/api/v1/chats")
	chats.Use(middleware.AuthJWT(testSecret))
	chats.POST("", chatHandler.CreateChat)
	chats.GET("/:id", chatHandler.GetChat)
	chats.POST("/:id/messages", chatHandler.AppendMessage)
	chats.POST("/:id/stream", chatHandler.StreamMessage)
	return router
}

func createHandlerTestUser(t *testing.T, db *gorm.DB, username string) (*model.User, string) {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(user))
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, user.ID, user.Username)
	require.NoError(t, err)
	return user, token
}

func doJSON(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func createChatViaAPI(t *testing.T, router *gin.Engine, token string) uint {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/chats", token, `{"title":""}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Data model.Chat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data.ID
}

func TestChatEndpointsRequireAuth(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, "")

	w := doJSON(router, http.MethodPost, "/api/v1/chats", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetChatNotFoundForOtherUser(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, "")
	_, aliceToken := createHandlerTestUser(t, db, "alice")
	_, bobToken := createHandlerTestUser(t, db, "bob")

	chatID := createChatViaAPI(t, router, aliceToken)

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chatID), bobToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamMessageSSEFraming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, token := range []string{"Hel", "lo"} {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": token}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, upstream.URL)
	_, token := createHandlerTestUser(t, db, "alice")
	chatID := createChatViaAPI(t, router, token)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), token, `{"content":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: Hel\n\ndata: lo\n\ndata: [DONE]\n\n", w.Body.String())

	getW := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chatID), token, "")
	require.Equal(t, http.StatusOK, getW.Code)
	var body struct {
		Data struct {
			Messages []model.Message `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &body))
	require.Len(t, body.Data.Messages, 2)
	assert.Equal(t, "Hello", body.Data.Messages[1].Content)
}

func TestStreamMessageUpstreamErrorEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer upstream.Close()

	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, upstream.URL)
	_, token := createHandlerTestUser(t, db, "alice")
	chatID := createChatViaAPI(t, router, token)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), token, `{"content":"hi"}`)
	assert.Contains(t, w.Body.String(), "event: error\n")
	assert.NotContains(t, w.Body.String(), "[DONE]")

	getW := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chatID), token, "")
	var body struct {
		Data struct {
			Messages []model.Message `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &body))
	require.Len(t, body.Data.Messages, 1, "no assistant message persisted on failure")
}

func TestStreamMessageMultilineChunkFraming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": "line one\nline two"}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, upstream.URL)
	_, token := createHandlerTestUser(t, db, "alice")
	chatID := createChatViaAPI(t, router, token)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), token, `{"content":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data: line one\ndata: line two\n\ndata: [DONE]\n\n", w.Body.String(),
		"a token with a newline spans consecutive data lines in one frame")

	getW := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chatID), token, "")
	var body struct {
		Data struct {
			Messages []model.Message `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &body))
	require.Len(t, body.Data.Messages, 2)
	assert.Equal(t, "line one\nline two", body.Data.Messages[1].Content, "persisted content stays verbatim")
}

func TestStreamMessageChatNotFoundBeforeStreaming(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, "http://127.0.0.1:1")
	_, aliceToken := createHandlerTestUser(t, db, "alice")
	_, bobToken := createHandlerTestUser(t, db, "bob")

	w := doJSON(router, http.MethodPost, "/api/v1/chats/9999/stream", aliceToken, `{"content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "event: error")

	chatID := createChatViaAPI(t, router, aliceToken)
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), bobToken, `{"content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code, "another user's chat reads as not-found")
}

func TestStreamMessageEditSequenceValidation(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newChatRouter(t, db, "http://127.0.0.1:1")
	_, token := createHandlerTestUser(t, db, "alice")
	chatID := createChatViaAPI(t, router, token)

	for _, payload := range []string{
		`{"role":"user","content":"question"}`,
		`{"role":"assistant","content":"answer"}`,
	} {
		w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/messages", chatID), token, payload)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), token, `{"content":"x","edit_sequence":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "editing an assistant message fails before the stream starts")
	assert.Contains(t, w.Body.String(), "only user messages can be edited")

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/stream", chatID), token, `{"content":"x","edit_sequence":99}`)
	assert.Equal(t, http.StatusNotFound, w.Code, "a missing edit target reads as not-found")
}
