package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
)

type developerConfigRepository struct {
	db *gorm.DB
}

// NewDeveloperConfigRepository creates a new developer config repository instance
func NewDeveloperConfigRepository(db *gorm.DB) DeveloperConfigRepository {
	return &developerConfigRepository{db: db}
}

// Latest returns the most recent configuration row, or nil when none exists.
func (r *developerConfigRepository) Latest(ctx context.Context) (*models.DeveloperConfig, error) {
	var cfg models.DeveloperConfig
	err := r.db.WithContext(ctx).Order("id DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Append stores cfg as the new authoritative row.
func (r *developerConfigRepository) Append(ctx context.Context, cfg *models.DeveloperConfig) error {
	cfg.ID = 0
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *developerConfigRepository) History(ctx context.Context, limit int) ([]models.DeveloperConfig, error) {
	var rows []models.DeveloperConfig
	q := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
