package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Payment is a settled money movement on a bill. Negative amounts are refunds.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BillID            uuid.UUID           `gorm:"column:bill_id;type:uuid;not null"`
	Amount            int64               `gorm:"column:amount;not null"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	PaidAt            time.Time           `gorm:"column:paid_at;not null"`
	RecordedBy        uuid.UUID           `gorm:"column:recorded_by;type:uuid;not null"`
	Notes             *string             `gorm:"column:notes"`
	RefundOfPaymentID *uuid.UUID          `gorm:"column:refund_of_payment_id;type:uuid"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PaymentAllocation is one revenue bucket of a payment.
type PaymentAllocation struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID uuid.UUID              `gorm:"column:payment_id;type:uuid;not null"`
	Target    enums.AllocationTarget `gorm:"column:target;type:text;not null"`
	Amount    int64                  `gorm:"column:amount;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (a *PaymentAllocation) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
