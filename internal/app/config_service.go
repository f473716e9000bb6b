package app

import (
	"errors"

	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigExists   = errors.New("config key already exists")
)

type ConfigService struct {
	configRepo *repository.ConfigRepository
}

func NewConfigService(configRepo *repository.ConfigRepository) *ConfigService {
	return &ConfigService{configRepo: configRepo}
}

// GetUserConfig returns the user's preference bag, creating an empty one
// on first read.
func (s *ConfigService) GetUserConfig(userID uint) (*model.UserConfig, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	cfg, err := s.configRepo.GetUserConfig(userID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg = &model.UserConfig{UserID: userID}
	cfg.SetPreferences(nil)
	if err := s.configRepo.CreateUserConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateUserConfig replaces the preference bag wholesale.
func (s *ConfigService) UpdateUserConfig(userID uint, preferences map[string]any) (*model.UserConfig, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	cfg, err := s.configRepo.GetUserConfig(userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &model.UserConfig{UserID: userID}
		cfg.SetPreferences(preferences)
		if err := s.configRepo.CreateUserConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg.SetPreferences(preferences)
	if err := s.configRepo.UpdateUserConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) ListSystemConfigs(skip, limit int) ([]model.SystemConfig, error) {
	return s.configRepo.ListSystemConfigs(skip, limit)
}

func (s *ConfigService) GetSystemConfig(key string) (*model.SystemConfig, error) {
	if key == "" {
		return nil, ErrInvalidInput
	}
	cfg, err := s.configRepo.GetSystemConfig(key)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *ConfigService) CreateSystemConfig(key string, value any, description string) (*model.SystemConfig, error) {
	if key == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.configRepo.GetSystemConfig(key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConfigExists
	}

	cfg := &model.SystemConfig{Key: key, Description: description}
	cfg.SetValue(value)
	if err := s.configRepo.CreateSystemConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) UpdateSystemConfig(key string, value any, description *string) (*model.SystemConfig, error) {
	cfg, err := s.GetSystemConfig(key)
	if err != nil {
		return nil, err
	}
	cfg.SetValue(value)
	if description != nil {
		cfg.Description = *description
	}
	if err := s.configRepo.UpdateSystemConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) DeleteSystemConfig(key string) error {
	if _, err := s.GetSystemConfig(key); err != nil {
		return err
	}
	return s.configRepo.DeleteSystemConfig(key)
}
