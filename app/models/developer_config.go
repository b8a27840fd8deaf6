package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// DeveloperConfig holds operator-managed provider settings. Rows are append
// only; the newest row is authoritative.
type DeveloperConfig struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WebhookSecret string    `gorm:"type:varchar(255);not null;default:''" json:"-" validate:"max=255"`
	KeyID         string    `gorm:"type:varchar(100);not null;default:''" json:"-" validate:"max=100"`
	KeySecret     string    `gorm:"type:varchar(255);not null;default:''" json:"-" validate:"max=255"`
	UpdatedBy     string    `gorm:"type:varchar(100);not null" json:"updated_by" validate:"required,max=100"`
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`
}

// Validate validates the configuration row
func (c *DeveloperConfig) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// Merge returns a new row holding the values of update, with blank fields
// carried over from c. c may be nil.
func (c *DeveloperConfig) Merge(update DeveloperConfig) DeveloperConfig {
	next := DeveloperConfig{
		WebhookSecret: update.WebhookSecret,
		KeyID:         update.KeyID,
		KeySecret:     update.KeySecret,
		UpdatedBy:     update.UpdatedBy,
	}
	if c == nil {
		return next
	}
	if next.WebhookSecret == "" {
		next.WebhookSecret = c.WebhookSecret
	}
	if next.KeyID == "" {
		next.KeyID = c.KeyID
	}
	if next.KeySecret == "" {
		next.KeySecret = c.KeySecret
	}
	return next
}

// MaskSecret hides all but the last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
