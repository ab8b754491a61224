package bills

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

// RecordPaymentInput appends one payment to a bill.
type RecordPaymentInput struct {
	BillID            uuid.UUID
	Amount            int64
	Method            enums.PaymentMethod
	PaidAt            *time.Time
	Notes             *string
	RefundOfPaymentID *uuid.UUID
}

// HeaderPatch carries the bill header fields a full edit may change. Nil
// fields are left untouched.
type HeaderPatch struct {
	CustomerID  *uuid.UUID
	ArtistID    *uuid.UUID
	ClearArtist bool
	BillType    *enums.BillType
	Currency    *string
	Notes       *string

	// Status only accepts VOID; other statuses are derived from payments.
	Status     *enums.BillStatus
	VoidReason *string
}

// ItemEdit is one line of a full edit. A nil ID inserts a new line.
type ItemEdit struct {
	ID         *uuid.UUID
	ServiceID  *uuid.UUID
	Name       string
	BasePrice  int64
	FinalPrice int64
	Variants   types.VariantFields
}

// PaymentEdit is one payment of a full edit. A nil ID inserts a new payment.
// Allocation, when present, is stored as given and must sum to Amount.
type PaymentEdit struct {
	ID                *uuid.UUID
	Amount            int64
	Method            enums.PaymentMethod
	PaidAt            *time.Time
	Notes             *string
	RefundOfPaymentID *uuid.UUID
	Allocation        *allocation.Split
}

// FullEditInput replaces a bill in place. A nil Items or Payments slice keeps
// the current rows; an empty slice removes them all.
type FullEditInput struct {
	BillID               uuid.UUID
	Header               *HeaderPatch
	Items                []ItemEdit
	Payments             []PaymentEdit
	RecomputeAllocations bool
}

// TopupInput creates a stored-value top-up bill for a member.
type TopupInput struct {
	MemberID uuid.UUID
	Amount   int64
	Method   enums.PaymentMethod
	PaidAt   *time.Time
	Notes    *string
}

// RefundInput credits a member's wallet through a refund bill.
type RefundInput struct {
	MemberID     uuid.UUID
	Amount       int64
	SourceBillID *uuid.UUID
	Notes        *string
}

// ManualItem is the single line of a manual bill.
type ManualItem struct {
	ServiceID  *uuid.UUID
	Name       string
	BasePrice  int64
	FinalPrice *int64
	Variants   types.VariantFields
}

// ManualPayment is the optional payment taken when a manual bill is created.
type ManualPayment struct {
	Amount int64
	Method enums.PaymentMethod
	PaidAt *time.Time
	Notes  *string
}

// ManualBillInput creates a walk-in or other bill without an appointment.
type ManualBillInput struct {
	BranchID   uuid.UUID
	CustomerID *uuid.UUID
	ArtistID   *uuid.UUID
	BillType   enums.BillType
	Currency   *string
	Notes      *string
	Item       ManualItem
	Payment    *ManualPayment
}

// Detail is a bill with its lines, payments and computed summary.
type Detail struct {
	Bill     BillView      `json:"bill"`
	Items    []ItemView    `json:"items"`
	Payments []PaymentView `json:"payments"`
	Summary  Summary       `json:"summary"`
}

// BillView is the API shape of a bill header.
type BillView struct {
	ID            uuid.UUID        `json:"id"`
	BranchID      uuid.UUID        `json:"branch_id"`
	AppointmentID *uuid.UUID       `json:"appointment_id,omitempty"`
	CustomerID    *uuid.UUID       `json:"customer_id,omitempty"`
	ArtistID      *uuid.UUID       `json:"artist_id,omitempty"`
	SourceBillID  *uuid.UUID       `json:"source_bill_id,omitempty"`
	CreatedBy     uuid.UUID        `json:"created_by"`
	BillType      enums.BillType   `json:"bill_type"`
	Status        enums.BillStatus `json:"status"`
	ListTotal     int64            `json:"list_total"`
	DiscountTotal int64            `json:"discount_total"`
	BillTotal     int64            `json:"bill_total"`
	Currency      string           `json:"currency"`
	Notes         *string          `json:"notes,omitempty"`
	VoidedAt      *time.Time       `json:"voided_at,omitempty"`
	VoidedBy      *uuid.UUID       `json:"voided_by,omitempty"`
	VoidReason    *string          `json:"void_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ItemView is the API shape of a bill line.
type ItemView struct {
	ID         uuid.UUID           `json:"id"`
	ServiceID  *uuid.UUID          `json:"service_id,omitempty"`
	Name       string              `json:"name"`
	BasePrice  int64               `json:"base_price"`
	FinalPrice int64               `json:"final_price"`
	Variants   types.VariantFields `json:"variants,omitempty"`
	SortOrder  int                 `json:"sort_order"`
}

// PaymentView is a payment with its artist/shop allocation.
type PaymentView struct {
	ID                uuid.UUID           `json:"id"`
	Amount            int64               `json:"amount"`
	Method            enums.PaymentMethod `json:"method"`
	PaidAt            time.Time           `json:"paid_at"`
	RecordedBy        uuid.UUID           `json:"recorded_by"`
	Notes             *string             `json:"notes,omitempty"`
	RefundOfPaymentID *uuid.UUID          `json:"refund_of_payment_id,omitempty"`
	Allocation        allocation.Split    `json:"allocation"`
}

// Summary holds the computed money view of a bill.
type Summary struct {
	PaidTotal    int64 `json:"paid_total"`
	DueTotal     int64 `json:"due_total"`
	ArtistAmount int64 `json:"artist_amount"`
	ShopAmount   int64 `json:"shop_amount"`
}

// DeleteResult reports what a hard delete undid in the wallet.
type DeleteResult struct {
	BillID    uuid.UUID                `json:"bill_id"`
	Reversals []wallet.ReversalOutcome `json:"reversals"`
}

func newBillView(b *models.Bill) BillView {
	return BillView{
		ID:            b.ID,
		BranchID:      b.BranchID,
		AppointmentID: b.AppointmentID,
		CustomerID:    b.CustomerID,
		ArtistID:      b.ArtistID,
		SourceBillID:  b.SourceBillID,
		CreatedBy:     b.CreatedBy,
		BillType:      b.BillType,
		Status:        b.Status,
		ListTotal:     b.ListTotal,
		DiscountTotal: b.DiscountTotal,
		BillTotal:     b.BillTotal,
		Currency:      b.Currency,
		Notes:         b.Notes,
		VoidedAt:      b.VoidedAt,
		VoidedBy:      b.VoidedBy,
		VoidReason:    b.VoidReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func newItemView(i models.BillItem) ItemView {
	return ItemView{
		ID:         i.ID,
		ServiceID:  i.ServiceID,
		Name:       i.NameSnapshot,
		BasePrice:  i.BasePriceSnapshot,
		FinalPrice: i.FinalPriceSnapshot,
		Variants:   i.VariantsSnapshot,
		SortOrder:  i.SortOrder,
	}
}

func newPaymentView(p models.Payment, split allocation.Split) PaymentView {
	return PaymentView{
		ID:                p.ID,
		Amount:            p.Amount,
		Method:            p.Method,
		PaidAt:            p.PaidAt,
		RecordedBy:        p.RecordedBy,
		Notes:             p.Notes,
		RefundOfPaymentID: p.RefundOfPaymentID,
		Allocation:        split,
	}
}
