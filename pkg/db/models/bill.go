package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Bill is the financial record of one studio transaction.
type Bill struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID      uuid.UUID        `gorm:"column:branch_id;type:uuid;not null"`
	AppointmentID *uuid.UUID       `gorm:"column:appointment_id;type:uuid"`
	CustomerID    *uuid.UUID       `gorm:"column:customer_id;type:uuid"`
	ArtistID      *uuid.UUID       `gorm:"column:artist_id;type:uuid"`
	SourceBillID  *uuid.UUID       `gorm:"column:source_bill_id;type:uuid"`
	CreatedBy     uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	BillType      enums.BillType   `gorm:"column:bill_type;type:text;not null"`
	Status        enums.BillStatus `gorm:"column:status;type:text;not null;default:'OPEN'"`
	ListTotal     int64            `gorm:"column:list_total;not null;default:0"`
	DiscountTotal int64            `gorm:"column:discount_total;not null;default:0"`
	BillTotal     int64            `gorm:"column:bill_total;not null;default:0"`
	Currency      string           `gorm:"column:currency;type:text;not null"`
	Notes         *string          `gorm:"column:notes"`
	VoidedAt      *time.Time       `gorm:"column:voided_at"`
	VoidedBy      *uuid.UUID       `gorm:"column:voided_by;type:uuid"`
	VoidReason    *string          `gorm:"column:void_reason"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Bill) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// IsVoid reports whether the bill reached its terminal state.
func (b Bill) IsVoid() bool {
	return b.Status == enums.BillStatusVoid
}
