package wallet

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

const (
	OutcomeReversed    = "reversed"
	OutcomeCompensated = "compensated"
)

// ReversalOutcome is either Reversed or Compensated.
type ReversalOutcome interface {
	Outcome() string
}

// Reversed means the original ledger entry was found and deleted.
type Reversed struct {
	LedgerEntryID uuid.UUID
}

func (Reversed) Outcome() string { return OutcomeReversed }

func (r Reversed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outcome       string    `json:"outcome"`
		LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	}{OutcomeReversed, r.LedgerEntryID})
}

// Compensated means no unique original entry was found, so an offsetting
// entry of EntryType was written instead.
type Compensated struct {
	EntryType     enums.WalletEntryType
	Amount        int64
	LedgerEntryID uuid.UUID
}

func (Compensated) Outcome() string { return OutcomeCompensated }

func (c Compensated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outcome       string                `json:"outcome"`
		EntryType     enums.WalletEntryType `json:"entry_type"`
		Amount        int64                 `json:"amount"`
		LedgerEntryID uuid.UUID             `json:"ledger_entry_id"`
	}{OutcomeCompensated, c.EntryType, c.Amount, c.LedgerEntryID})
}
