package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
)

// newTestDB opens an isolated in-memory SQLite database with the full
// schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.VerificationToken{},
		&model.PasswordResetToken{},
		&model.LoginAudit{},
		&model.Chat{},
		&model.Message{},
		&model.Attachment{},
		&model.UserConfig{},
		&model.SystemConfig{},
	))
	return db
}

type fakeAuditPublisher struct {
	mu     sync.Mutex
	audits []model.LoginAudit
}

func (p *fakeAuditPublisher) Publish(_ context.Context, audit model.LoginAudit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audits = append(p.audits, audit)
	return nil
}

func (p *fakeAuditPublisher) all() []model.LoginAudit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.LoginAudit(nil), p.audits...)
}

type fakeMailer struct {
	verifications []string
	resets        []string
	lastToken     string
}

func (m *fakeMailer) SendVerification(to, token string) error {
	m.verifications = append(m.verifications, to)
	m.lastToken = token
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, token string) error {
	m.resets = append(m.resets, to)
	m.lastToken = token
	return nil
}

func newTestAuthService(t *testing.T, db *gorm.DB) (*AuthService, *fakeAuditPublisher, *fakeMailer) {
	t.Helper()
	publisher := &fakeAuditPublisher{}
	mailer := &fakeMailer{}
	svc := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewTokenRepository(db),
		repository.NewLoginAuditRepository(db),
		publisher,
		mailer,
		"test-secret",
		time.Hour,
	)
	return svc, publisher, mailer
}

func registerTestUser(t *testing.T, svc *AuthService, username, email string) *model.User {
	t.Helper()
	result, err := svc.Register(RegisterInput{
		Username: username,
		Email:    email,
		Password: "password123",
	})
	require.NoError(t, err)
	return result.User
}
