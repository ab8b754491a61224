package dto

import (
	"time"

	"github.com/google/uuid"
)

// TopupRequest loads stored value onto a member's wallet.
type TopupRequest struct {
	Amount int64      `json:"amount" validate:"gt=0"`
	Method string     `json:"method" validate:"required,oneof=CASH CARD TRANSFER OTHER"`
	PaidAt *time.Time `json:"paid_at"`
	Notes  *string    `json:"notes" validate:"omitempty,max=500"`
}

// RefundRequest credits a member's wallet as a refund.
type RefundRequest struct {
	Amount       int64      `json:"amount" validate:"gt=0"`
	SourceBillID *uuid.UUID `json:"source_bill_id"`
	Notes        *string    `json:"notes" validate:"omitempty,max=500"`
}
