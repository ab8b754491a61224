package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Effect is the stored-value consequence of one payment.
type Effect struct {
	// BalanceDelta is added to the member balance; negative values are debits.
	BalanceDelta int64
	// SpentDelta is added to the member's lifetime stored-value consumption.
	SpentDelta int64
	EntryType  enums.WalletEntryType
	// Amount is the positive ledger entry amount.
	Amount int64
}

// EffectFor returns the wallet effect of a payment on a bill of billType, or
// false when the payment does not touch the wallet.
func EffectFor(billType enums.BillType, method enums.PaymentMethod, amount int64) (Effect, bool) {
	if amount == 0 {
		return Effect{}, false
	}
	switch {
	case billType.IsStoredValue():
		if amount > 0 {
			return Effect{BalanceDelta: amount, EntryType: enums.WalletEntryTopup, Amount: amount}, true
		}
		return Effect{BalanceDelta: amount, EntryType: enums.WalletEntrySpend, Amount: -amount}, true
	case method.IsWalletDebit():
		if amount > 0 {
			return Effect{BalanceDelta: -amount, SpentDelta: amount, EntryType: enums.WalletEntrySpend, Amount: amount}, true
		}
		return Effect{BalanceDelta: -amount, SpentDelta: amount, EntryType: enums.WalletEntryTopup, Amount: -amount}, true
	default:
		return Effect{}, false
	}
}

// Movement is an Effect bound to a member and the payment that caused it.
type Movement struct {
	Effect
	MemberID   uuid.UUID
	OperatorID uuid.UUID
	BillID     *uuid.UUID
	OccurredAt time.Time
	Note       *string
}

// Inverse returns the effect that undoes e.
func (e Effect) Inverse() Effect {
	return Effect{
		BalanceDelta: -e.BalanceDelta,
		SpentDelta:   -e.SpentDelta,
		EntryType:    e.EntryType.Opposite(),
		Amount:       e.Amount,
	}
}
