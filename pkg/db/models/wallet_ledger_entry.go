package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// WalletLedgerEntry mirrors exactly one stored-value balance change. Amount is
// always positive; Type carries the direction.
type WalletLedgerEntry struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID   uuid.UUID             `gorm:"column:member_id;type:uuid;not null"`
	Type       enums.WalletEntryType `gorm:"column:type;type:text;not null"`
	Amount     int64                 `gorm:"column:amount;not null"`
	OperatorID uuid.UUID             `gorm:"column:operator_id;type:uuid;not null"`
	BillID     *uuid.UUID            `gorm:"column:bill_id;type:uuid"`
	Note       *string               `gorm:"column:note"`
	OccurredAt time.Time             `gorm:"column:occurred_at;not null"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *WalletLedgerEntry) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
