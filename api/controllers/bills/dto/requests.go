package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

// RecordPaymentRequest appends a payment or refund to a bill.
type RecordPaymentRequest struct {
	Amount            int64      `json:"amount" validate:"ne=0"`
	Method            string     `json:"method" validate:"required,oneof=CASH CARD TRANSFER STORED_VALUE OTHER"`
	PaidAt            *time.Time `json:"paid_at"`
	Notes             *string    `json:"notes" validate:"omitempty,max=500"`
	RefundOfPaymentID *uuid.UUID `json:"refund_of_payment_id"`
}

// ReasonRequest carries the mandatory reason for void and hard delete.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ManualItemRequest is the single line of a manual bill.
type ManualItemRequest struct {
	ServiceID  *uuid.UUID          `json:"service_id"`
	Name       string              `json:"name" validate:"required,max=200"`
	BasePrice  int64               `json:"base_price" validate:"min=0"`
	FinalPrice *int64              `json:"final_price" validate:"omitempty,min=0"`
	Variants   types.VariantFields `json:"variants"`
}

// ManualPaymentRequest is the optional payment taken with a manual bill.
type ManualPaymentRequest struct {
	Amount int64      `json:"amount" validate:"ne=0"`
	Method string     `json:"method" validate:"required,oneof=CASH CARD TRANSFER STORED_VALUE OTHER"`
	PaidAt *time.Time `json:"paid_at"`
	Notes  *string    `json:"notes" validate:"omitempty,max=500"`
}

// ManualBillRequest creates a walk-in or other bill. BranchID defaults to the
// actor's branch.
type ManualBillRequest struct {
	BranchID   *uuid.UUID            `json:"branch_id"`
	CustomerID *uuid.UUID            `json:"customer_id"`
	ArtistID   *uuid.UUID            `json:"artist_id"`
	BillType   string                `json:"bill_type" validate:"required,oneof=WALK_IN OTHER"`
	Currency   *string               `json:"currency" validate:"omitempty,len=3"`
	Notes      *string               `json:"notes" validate:"omitempty,max=500"`
	Item       ManualItemRequest     `json:"item"`
	Payment    *ManualPaymentRequest `json:"payment"`
}

// HeaderRequest patches the bill header. artist_id: null clears the artist.
type HeaderRequest struct {
	CustomerID *uuid.UUID         `json:"customer_id"`
	ArtistID   types.NullableUUID `json:"artist_id"`
	BillType   *string            `json:"bill_type" validate:"omitempty,oneof=APPOINTMENT WALK_IN OTHER STORED_VALUE_TOPUP STORED_VALUE_REFUND"`
	Currency   *string            `json:"currency" validate:"omitempty,len=3"`
	Notes      *string            `json:"notes" validate:"omitempty,max=500"`
	Status     *string            `json:"status" validate:"omitempty,oneof=VOID"`
	VoidReason *string            `json:"void_reason" validate:"omitempty,max=500"`
}

// ItemRequest is one line of a full edit; omit id to insert.
type ItemRequest struct {
	ID         *uuid.UUID          `json:"id"`
	ServiceID  *uuid.UUID          `json:"service_id"`
	Name       string              `json:"name" validate:"required,max=200"`
	BasePrice  int64               `json:"base_price" validate:"min=0"`
	FinalPrice int64               `json:"final_price" validate:"min=0"`
	Variants   types.VariantFields `json:"variants"`
}

// AllocationRequest is an explicit artist/shop split for one payment.
type AllocationRequest struct {
	Artist int64 `json:"artist"`
	Shop   int64 `json:"shop"`
}

// PaymentRequest is one payment of a full edit; omit id to insert.
type PaymentRequest struct {
	ID                *uuid.UUID         `json:"id"`
	Amount            int64              `json:"amount" validate:"ne=0"`
	Method            string             `json:"method" validate:"required,oneof=CASH CARD TRANSFER STORED_VALUE OTHER"`
	PaidAt            *time.Time         `json:"paid_at"`
	Notes             *string            `json:"notes" validate:"omitempty,max=500"`
	RefundOfPaymentID *uuid.UUID         `json:"refund_of_payment_id"`
	Allocation        *AllocationRequest `json:"allocation"`
}

// FullEditRequest replaces a bill in place. Omitted items or payments are
// kept; an empty array removes them.
type FullEditRequest struct {
	Header               *HeaderRequest   `json:"header"`
	Items                []ItemRequest    `json:"items" validate:"omitempty,dive"`
	Payments             []PaymentRequest `json:"payments" validate:"omitempty,dive"`
	RecomputeAllocations bool             `json:"recompute_allocations"`
}
