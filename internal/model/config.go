package model

import (
	"encoding/json"
	"time"
)

// UserConfig holds one user's free-form preference bag.
// Preferences is stored as a JSON object for portability across drivers.
type UserConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Preferences string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PreferenceMap returns the parsed preference bag; empty on parse error.
func (c *UserConfig) PreferenceMap() map[string]any {
	out := map[string]any{}
	if c.Preferences != "" {
		_ = json.Unmarshal([]byte(c.Preferences), &out)
	}
	return out
}

// SetPreferences stores the preference bag as JSON.
func (c *UserConfig) SetPreferences(prefs map[string]any) {
	if prefs == nil {
		prefs = map[string]any{}
	}
	b, _ := json.Marshal(prefs)
	c.Preferences = string(b)
}

// SystemConfig is one global configuration row, unique per key.
type SystemConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:255;not null;uniqueIndex" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"-"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValueAny returns the parsed JSON value; nil on parse error.
func (c *SystemConfig) ValueAny() any {
	if c.Value == "" {
		return nil
	}
	var v any
	_ = json.Unmarshal([]byte(c.Value), &v)
	return v
}

// SetValue stores the value as JSON.
func (c *SystemConfig) SetValue(v any) {
	b, _ := json.Marshal(v)
	c.Value = string(b)
}
