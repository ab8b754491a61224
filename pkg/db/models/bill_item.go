package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

// BillItem is a denormalized price snapshot; it never re-reads the catalog.
type BillItem struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BillID             uuid.UUID           `gorm:"column:bill_id;type:uuid;not null"`
	ServiceID          *uuid.UUID          `gorm:"column:service_id;type:uuid"`
	NameSnapshot       string              `gorm:"column:name_snapshot;type:text;not null"`
	BasePriceSnapshot  int64               `gorm:"column:base_price_snapshot;not null"`
	FinalPriceSnapshot int64               `gorm:"column:final_price_snapshot;not null"`
	VariantsSnapshot   types.VariantFields `gorm:"column:variants_snapshot;type:jsonb"`
	SortOrder          int                 `gorm:"column:sort_order;not null;default:0"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *BillItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
