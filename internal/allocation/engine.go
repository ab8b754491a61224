// Package allocation splits payments between the servicing artist and the
// shop. Every function is pure; callers persist the results.
package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Split is an artist/shop pair summing to a payment amount.
type Split struct {
	Artist int64 `json:"artist"`
	Shop   int64 `json:"shop"`
}

// Total returns Artist + Shop.
func (s Split) Total() int64 {
	return s.Artist + s.Shop
}

// Add accumulates o into s.
func (s Split) Add(o Split) Split {
	return Split{Artist: s.Artist + o.Artist, Shop: s.Shop + o.Shop}
}

// Targets returns the cumulative share each side should end up with once the
// bill is paid in full.
func Targets(billTotal int64, rule splitrules.Rule) Split {
	artist := mulRatio(billTotal, int64(rule.ArtistRateBps), splitrules.BasisPoints)
	return Split{Artist: artist, Shop: billTotal - artist}
}

// Input describes one payment to split.
type Input struct {
	Amount    int64
	Method    enums.PaymentMethod
	Rule      *splitrules.Rule
	BillTotal int64
	// Allocated is the sum of allocations already posted on the bill,
	// excluding this payment.
	Allocated Split
}

// Compute splits a payment. Positive amounts fill the buckets still short of
// their targets so cumulative allocation converges on the rule's ratio. Refunds
// and overpayments use the rule's ratio directly.
func Compute(in Input) Split {
	if in.Rule == nil || in.Method.IsWalletDebit() || in.Amount == 0 {
		return Split{}
	}
	if in.Amount < 0 {
		return flat(in.Amount, *in.Rule)
	}

	target := Targets(in.BillTotal, *in.Rule)
	remainingArtist := max(target.Artist-in.Allocated.Artist, 0)
	remainingShop := max(target.Shop-in.Allocated.Shop, 0)
	remaining := remainingArtist + remainingShop
	if remaining <= 0 {
		return flat(in.Amount, *in.Rule)
	}

	artist := mulRatio(in.Amount, remainingArtist, remaining)
	artist = min(max(artist, 0), in.Amount)
	return Split{Artist: artist, Shop: in.Amount - artist}
}

func flat(amount int64, rule splitrules.Rule) Split {
	artist := mulRatio(amount, int64(rule.ArtistRateBps), splitrules.BasisPoints)
	return Split{Artist: artist, Shop: amount - artist}
}

// mulRatio returns amount*num/den rounded half away from zero.
func mulRatio(amount, num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(num)).
		DivRound(decimal.NewFromInt(den), 0).
		IntPart()
}
