package splitrules

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
)

// Repository persists split rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Latest(ctx context.Context, artistID uuid.UUID) (*models.SplitRule, error)
	ReplaceForArtist(ctx context.Context, rule *models.SplitRule) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a split rule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Latest(ctx context.Context, artistID uuid.UUID) (*models.SplitRule, error) {
	var rule models.SplitRule
	err := r.db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Order("created_at DESC").
		Order("id DESC").
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ReplaceForArtist deletes every earlier rule of the artist and inserts rule.
// Callers run it inside a transaction.
func (r *repository) ReplaceForArtist(ctx context.Context, rule *models.SplitRule) error {
	if err := r.db.WithContext(ctx).
		Where("artist_id = ?", rule.ArtistID).
		Delete(&models.SplitRule{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rule).Error
}
