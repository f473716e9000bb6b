package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ai-chatbot/internal/model"
	"ai-chatbot/internal/pkg/jwtutil"
	"ai-chatbot/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrInactiveUser      = errors.New("user is inactive")
	ErrTokenInvalid      = errors.New("invalid or expired token")
	ErrUserNotFound      = errors.New("user not found")
)

const (
	verificationTokenTTL  = 24 * time.Hour
	passwordResetTokenTTL = 1 * time.Hour
)

// AuditPublisher enqueues login audit records off the request path.
type AuditPublisher interface {
	Publish(ctx context.Context, audit model.LoginAudit) error
}

// Mailer delivers account mail; a nil Mailer disables it.
type Mailer interface {
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
}

type AuthService struct {
	userRepo       *repository.UserRepository
	tokenRepo      *repository.TokenRepository
	auditRepo      *repository.LoginAuditRepository
	auditPublisher AuditPublisher
	mailer         Mailer
	jwtSecret      string
	jwtExpiration  time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Identifier string // username or email
	Password   string
	IPAddress  string
	UserAgent  string
}

type UpdateProfileInput struct {
	Username string
	Email    string
	FullName *string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(
	userRepo *repository.UserRepository,
	tokenRepo *repository.TokenRepository,
	auditRepo *repository.LoginAuditRepository,
	auditPublisher AuditPublisher,
	mailer Mailer,
	jwtSecret string,
	jwtExpiration time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		auditRepo:      auditRepo,
		auditPublisher: auditPublisher,
		mailer:         mailer,
		jwtSecret:      jwtSecret,
		jwtExpiration:  jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existingByName, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	verification := &model.VerificationToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(verificationTokenTTL),
	}
	if err := s.tokenRepo.CreateVerification(verification); err != nil {
		return nil, err
	}
	if s.mailer != nil {
		if err := s.mailer.SendVerification(user.Email, verification.Token); err != nil {
			log.Printf("send verification mail failed: %v", err)
		}
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Login authenticates by username or email. Attempts against existing
// users are recorded in the login audit queue regardless of outcome.
func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	password := strings.TrimSpace(input.Password)
	if identifier == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsernameOrEmail(identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	matched := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	s.publishAudit(user.ID, input.IPAddress, input.UserAgent, matched)

	if !matched {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ListLoginAudits returns the user's most recent authentication attempts,
// newest first. Records reach the table through the audit worker, so a
// just-finished login may not show up yet.
func (s *AuthService) ListLoginAudits(userID uint, limit int) ([]model.LoginAudit, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.auditRepo.ListByUserID(userID, limit)
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}

func (s *AuthService) UpdateProfile(userID uint, input UpdateProfileInput) (*model.User, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if username := strings.TrimSpace(input.Username); username != "" && username != user.Username {
		existing, err := s.userRepo.GetByUsername(username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrUsernameExists
		}
		user.Username = username
	}

	if email := strings.TrimSpace(strings.ToLower(input.Email)); email != "" && email != user.Email {
		existing, err := s.userRepo.GetByEmail(email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailExists
		}
		user.Email = email
		user.IsVerified = false
	}

	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}

	if password := strings.TrimSpace(input.Password); password != "" {
		if len(password) < 8 {
			return nil, ErrInvalidInput
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password failed: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail marks the token's owner verified and consumes the token.
func (s *AuthService) VerifyEmail(token string) (*model.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidInput
	}

	row, err := s.tokenRepo.GetVerification(token)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.userRepo.GetByID(row.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.IsVerified = true
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	if err := s.tokenRepo.DeleteVerification(row.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset issues a reset token when the email exists. It
// never reports whether it does; the handler responds neutrally.
func (s *AuthService) RequestPasswordReset(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	reset := &model.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(passwordResetTokenTTL),
	}
	if err := s.tokenRepo.CreatePasswordReset(reset); err != nil {
		return err
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(user.Email, reset.Token); err != nil {
			log.Printf("send password reset mail failed: %v", err)
		}
	}
	return nil
}

// ConfirmPasswordReset sets a new password and consumes the token.
func (s *AuthService) ConfirmPasswordReset(token, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if strings.TrimSpace(token) == "" || len(newPassword) < 8 {
		return ErrInvalidInput
	}

	row, err := s.tokenRepo.GetPasswordReset(token)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrTokenInvalid
	}

	user, err := s.userRepo.GetByID(row.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	return s.tokenRepo.DeletePasswordReset(row.ID)
}

func (s *AuthService) publishAudit(userID uint, ip, userAgent string, success bool) {
	if s.auditPublisher == nil {
		return
	}
	audit := model.LoginAudit{
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		CreatedAt: time.Now(),
	}
	if err := s.auditPublisher.Publish(context.Background(), audit); err != nil {
		log.Printf("publish login audit failed: %v", err)
	}
}
