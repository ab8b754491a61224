// Package payloads holds the data documents carried in outbox envelopes.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// BillEvent describes a bill after a lifecycle change. It backs bill_created,
// bill_rebuilt, bill_edited and bill_settled.
type BillEvent struct {
	BillID        uuid.UUID        `json:"billId"`
	BranchID      uuid.UUID        `json:"branchId"`
	AppointmentID *uuid.UUID       `json:"appointmentId,omitempty"`
	CustomerID    *uuid.UUID       `json:"customerId,omitempty"`
	ArtistID      *uuid.UUID       `json:"artistId,omitempty"`
	BillType      enums.BillType   `json:"billType"`
	Status        enums.BillStatus `json:"status"`
	BillTotal     int64            `json:"billTotal"`
	PaidTotal     int64            `json:"paidTotal"`
	Currency      string           `json:"currency"`
}

// PaymentRecordedEvent is emitted for every payment row written outside full edits.
type PaymentRecordedEvent struct {
	BillID       uuid.UUID           `json:"billId"`
	PaymentID    uuid.UUID           `json:"paymentId"`
	Amount       int64               `json:"amount"`
	Method       enums.PaymentMethod `json:"method"`
	PaidAt       time.Time           `json:"paidAt"`
	ArtistAmount int64               `json:"artistAmount"`
	ShopAmount   int64               `json:"shopAmount"`
	Status       enums.BillStatus    `json:"status"`
}

// BillVoidedEvent records the terminal transition to VOID.
type BillVoidedEvent struct {
	BillID   uuid.UUID `json:"billId"`
	BranchID uuid.UUID `json:"branchId"`
	Reason   string    `json:"reason"`
	VoidedAt time.Time `json:"voidedAt"`
}

// BillDeletedEvent keeps an audit trail of hard deletes.
type BillDeletedEvent struct {
	BillID       uuid.UUID      `json:"billId"`
	BranchID     uuid.UUID      `json:"branchId"`
	BillType     enums.BillType `json:"billType"`
	BillTotal    int64          `json:"billTotal"`
	PaidTotal    int64          `json:"paidTotal"`
	Reason       string         `json:"reason"`
	Reversed     int            `json:"reversed"`
	Compensated  int            `json:"compensated"`
	PaymentCount int            `json:"paymentCount"`
}

// WalletCompensatedEvent flags a reversal that could not find its ledger entry.
type WalletCompensatedEvent struct {
	MemberID      uuid.UUID             `json:"memberId"`
	BillID        *uuid.UUID            `json:"billId,omitempty"`
	EntryType     enums.WalletEntryType `json:"entryType"`
	Amount        int64                 `json:"amount"`
	LedgerEntryID uuid.UUID             `json:"ledgerEntryId"`
}
