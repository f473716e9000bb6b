package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"ai-chatbot/internal/ai"
	appsvc "ai-chatbot/internal/app"
	"ai-chatbot/internal/bootstrap"
	"ai-chatbot/internal/cache"
	"ai-chatbot/internal/mail"
	rabbitmqClient "ai-chatbot/internal/platform/rabbitmq"
	"ai-chatbot/internal/repository"
	"ai-chatbot/internal/storage"
	"ai-chatbot/internal/transport/http/handler"
	"ai-chatbot/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS(app.Config.CORS.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(app)
	router.StaticFile("/", "web/index.html")
	router.StaticFile("/login", "web/login.html")
	router.StaticFile("/register", "web/register.html")
	router.StaticFile("/verify", "web/verify.html")
	router.StaticFile("/reset", "web/reset.html")
	router.StaticFile("/chat", "web/chat.html")
	router.StaticFile("/settings", "web/settings.html")
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	tokenRepo := repository.NewTokenRepository(app.MySQL)
	loginAuditRepo := repository.NewLoginAuditRepository(app.MySQL)
	chatRepo := repository.NewChatRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	attachmentRepo := repository.NewAttachmentRepository(app.MySQL)
	configRepo := repository.NewConfigRepository(app.MySQL)

	auditPublisher := rabbitmqClient.NewAuditPublisher(app.MQConn, app.Config.RabbitMQ.LoginAuditQueue)
	mailer := mail.NewMailer(
		app.Config.SMTP.Enabled,
		app.Config.SMTP.Host,
		app.Config.SMTP.Port,
		app.Config.SMTP.User,
		app.Config.SMTP.Password,
		app.Config.SMTP.From,
		app.Config.App.BaseURL,
	)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	fileStore, err := storage.NewLocalStore(
		app.Config.Upload.Dir,
		app.Config.Upload.MaxSizeBytes,
		app.Config.Upload.AllowedExtensions,
	)
	if err != nil {
		return nil, fmt.Errorf("init file store failed: %w", err)
	}

	authService := appsvc.NewAuthService(
		userRepo,
		tokenRepo,
		loginAuditRepo,
		auditPublisher,
		mailer,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		chatRepo,
		messageRepo,
		attachmentRepo,
		historyCache,
		fileStore,
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		app.Config.LLM.MaxContextMessage,
	)
	attachmentService := appsvc.NewAttachmentService(attachmentRepo, messageRepo, chatRepo, fileStore)
	configService := appsvc.NewConfigService(configRepo)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService)
	configHandler := handler.NewConfigHandler(configService, authService)

	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authRequired, authHandler.Me)

	userGroup := v1.Group("/users")
	userGroup.PUT("/me", authRequired, userHandler.UpdateMe)
	userGroup.GET("/me/logins", authRequired, userHandler.ListLogins)
	userGroup.POST("/verify-email", userHandler.VerifyEmail)
	userGroup.POST("/reset-password", userHandler.RequestPasswordReset)
	userGroup.POST("/reset-password/confirm", userHandler.ConfirmPasswordReset)

	chatGroup := v1.Group("/chats")
	chatGroup.Use(authRequired)
	chatGroup.POST("", chatHandler.CreateChat)
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.GET("/:id", chatHandler.GetChat)
	chatGroup.PUT("/:id", chatHandler.UpdateChat)
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)
	chatGroup.POST("/:id/messages", chatHandler.AppendMessage)
	chatGroup.POST("/:id/stream", chatHandler.StreamMessage)
	chatGroup.POST("/:id/messages/:message_id/attachments", attachmentHandler.Upload)
	chatGroup.GET("/:id/messages/:message_id/attachments", attachmentHandler.ListForMessage)

	attachmentGroup := v1.Group("/attachments")
	attachmentGroup.Use(authRequired)
	attachmentGroup.GET("/:id", attachmentHandler.Download)
	attachmentGroup.DELETE("/:id", attachmentHandler.Delete)

	configGroup := v1.Group("/config")
	configGroup.Use(authRequired)
	configGroup.GET("/user", configHandler.GetUserConfig)
	configGroup.PUT("/user", configHandler.UpdateUserConfig)
	configGroup.GET("/system", configHandler.ListSystemConfigs)
	configGroup.POST("/system", configHandler.CreateSystemConfig)
	configGroup.GET("/system/:key", configHandler.GetSystemConfig)
	configGroup.PUT("/system/:key", configHandler.UpdateSystemConfig)
	configGroup.DELETE("/system/:key", configHandler.DeleteSystemConfig)

	return router, nil
}
