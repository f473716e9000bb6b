package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-chatbot/internal/model"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) GetUserConfig(userID uint) (*model.UserConfig, error) {
	var cfg model.UserConfig
	if err := r.db.Where("user_id = ?", userID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user config failed: %w", err)
	}
	return &cfg, nil
}

func (r *ConfigRepository) CreateUserConfig(cfg *model.UserConfig) error {
	if err := r.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("create user config failed: %w", err)
	}
	return nil
}

func (r *ConfigRepository) UpdateUserConfig(cfg *model.UserConfig) error {
	if err := r.db.Save(cfg).Error; err != nil {
		return fmt.Errorf("update user config failed: %w", err)
	}
	return nil
}

func (r *ConfigRepository) ListSystemConfigs(skip, limit int) ([]model.SystemConfig, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	var configs []model.SystemConfig
	if err := r.db.Order("`key` ASC").Offset(skip).Limit(limit).Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list system configs failed: %w", err)
	}
	return configs, nil
}

func (r *ConfigRepository) GetSystemConfig(key string) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	if err := r.db.Where("`key` = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query system config failed: %w", err)
	}
	return &cfg, nil
}

func (r *ConfigRepository) CreateSystemConfig(cfg *model.SystemConfig) error {
	if err := r.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("create system config failed: %w", err)
	}
	return nil
}

func (r *ConfigRepository) UpdateSystemConfig(cfg *model.SystemConfig) error {
	if err := r.db.Save(cfg).Error; err != nil {
		return fmt.Errorf("update system config failed: %w", err)
	}
	return nil
}

func (r *ConfigRepository) DeleteSystemConfig(key string) error {
	if err := r.db.Where("`key` = ?", key).Delete(&model.SystemConfig{}).Error; err != nil {
		return fmt.Errorf("delete system config failed: %w", err)
	}
	return nil
}
