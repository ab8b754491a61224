package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SplitRule is an artist's revenue share in basis points.
type SplitRule struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ArtistID      uuid.UUID `gorm:"column:artist_id;type:uuid;not null"`
	ArtistRateBps int       `gorm:"column:artist_rate_bps;not null"`
	ShopRateBps   int       `gorm:"column:shop_rate_bps;not null"`
	CreatedBy     uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *SplitRule) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
