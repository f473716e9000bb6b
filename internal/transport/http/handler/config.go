package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-chatbot/internal/app"
	"ai-chatbot/internal/model"
	"ai-chatbot/internal/transport/http/response"
)

type ConfigHandler struct {
	configService *app.ConfigService
	authService   *app.AuthService
}

type UpdateUserConfigRequest struct {
	Preferences map[string]any `json:"preferences" binding:"required"`
}

type CreateSystemConfigRequest struct {
	Key         string `json:"key" binding:"required,max=255"`
	Value       any    `json:"value" binding:"required"`
	Description string `json:"description" binding:"max=255"`
}

type UpdateSystemConfigRequest struct {
	Value       any     `json:"value" binding:"required"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

func NewConfigHandler(configService *app.ConfigService, authService *app.AuthService) *ConfigHandler {
	return &ConfigHandler{
		configService: configService,
		authService:   authService,
	}
}

func (h *ConfigHandler) GetUserConfig(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	cfg, err := h.configService.GetUserConfig(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get user config failed")
		return
	}

	response.OK(c, userConfigView(cfg))
}

func (h *ConfigHandler) UpdateUserConfig(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UpdateUserConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	cfg, err := h.configService.UpdateUserConfig(userID, req.Preferences)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update user config failed")
		return
	}

	response.OK(c, userConfigView(cfg))
}

func (h *ConfigHandler) ListSystemConfigs(c *gin.Context) {
	if !h.requireSuperuser(c) {
		return
	}

	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 100)

	configs, err := h.configService.ListSystemConfigs(skip, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list system configs failed")
		return
	}

	views := make([]gin.H, 0, len(configs))
	for i := range configs {
		views = append(views, systemConfigView(&configs[i]))
	}
	response.OK(c, views)
}

func (h *ConfigHandler) GetSystemConfig(c *gin.Context) {
	if !h.requireSuperuser(c) {
		return
	}

	cfg, err := h.configService.GetSystemConfig(c.Param("key"))
	if err != nil {
		h.systemConfigError(c, err, "get system config failed")
		return
	}

	response.OK(c, systemConfigView(cfg))
}

func (h *ConfigHandler) CreateSystemConfig(c *gin.Context) {
	if !h.requireSuperuser(c) {
		return
	}

	var req CreateSystemConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	cfg, err := h.configService.CreateSystemConfig(req.Key, req.Value, req.Description)
	if err != nil {
		h.systemConfigError(c, err, "create system config failed")
		return
	}

	response.Created(c, systemConfigView(cfg))
}

func (h *ConfigHandler) UpdateSystemConfig(c *gin.Context) {
	if !h.requireSuperuser(c) {
		return
	}

	var req UpdateSystemConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	cfg, err := h.configService.UpdateSystemConfig(c.Param("key"), req.Value, req.Description)
	if err != nil {
		h.systemConfigError(c, err, "update system config failed")
		return
	}

	response.OK(c, systemConfigView(cfg))
}

func (h *ConfigHandler) DeleteSystemConfig(c *gin.Context) {
	if !h.requireSuperuser(c) {
		return
	}

	key := c.Param("key")
	if err := h.configService.DeleteSystemConfig(key); err != nil {
		h.systemConfigError(c, err, "delete system config failed")
		return
	}

	response.OK(c, gin.H{"deleted_key": key})
}

// requireSuperuser aborts with 403 for non-superusers. It resolves the
// caller from storage rather than trusting a token claim, so revoking the
// flag takes effect immediately.
func (h *ConfigHandler) requireSuperuser(c *gin.Context) bool {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return false
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return false
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return false
	}
	if !user.IsSuperuser {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "superuser required")
		return false
	}
	return true
}

func (h *ConfigHandler) systemConfigError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrConfigNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConfigNotFound, err.Error())
	case errors.Is(err, app.ErrConfigExists):
		response.Error(c, http.StatusConflict, response.CodeConfigKeyExists, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func userConfigView(cfg *model.UserConfig) gin.H {
	return gin.H{
		"id":          cfg.ID,
		"user_id":     cfg.UserID,
		"preferences": cfg.PreferenceMap(),
		"updated_at":  cfg.UpdatedAt,
	}
}

func systemConfigView(cfg *model.SystemConfig) gin.H {
	return gin.H{
		"id":          cfg.ID,
		"key":         cfg.Key,
		"value":       cfg.ValueAny(),
		"description": cfg.Description,
		"updated_at":  cfg.UpdatedAt,
	}
}
