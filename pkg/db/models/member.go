package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member is a studio customer. Billing only writes the wallet columns.
type Member struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID           uuid.UUID  `gorm:"column:branch_id;type:uuid;not null"`
	Name               string     `gorm:"column:name;type:text;not null"`
	PrimaryArtistID    *uuid.UUID `gorm:"column:primary_artist_id;type:uuid"`
	StoredValueBalance int64      `gorm:"column:stored_value_balance;not null;default:0"`
	TotalSpent         int64      `gorm:"column:total_spent;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
