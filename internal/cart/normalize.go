package cart

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

// ErrNoDerivation is returned when a payload has neither items nor a total.
var ErrNoDerivation = errors.New("cart: no derivation possible")

// FlatTotalName names the line synthesized from a flat cart total.
const FlatTotalName = "cart total"

// Line is a canonical bill line item in minor units.
type Line struct {
	ServiceID  *uuid.UUID
	Name       string
	BasePrice  int64
	FinalPrice int64
	Variants   types.VariantFields
}

// Totals are the bill level amounts derived from a set of lines.
type Totals struct {
	ListTotal     int64
	DiscountTotal int64
	BillTotal     int64
}

// Result is a normalized cart.
type Result struct {
	Totals
	Lines []Line
}

// Normalize converts a payload into canonical line items and totals.
func Normalize(p Payload) (Result, error) {
	if len(p.Items) == 0 {
		if p.Total == nil {
			return Result{}, ErrNoDerivation
		}
		amount := floorMoney(*p.Total)
		lines := []Line{{Name: FlatTotalName, BasePrice: amount, FinalPrice: amount}}
		return Result{Totals: Summarize(lines), Lines: lines}, nil
	}

	lines := make([]Line, 0, len(p.Items))
	for _, item := range p.Items {
		lines = append(lines, normalizeItem(item))
	}
	return Result{Totals: Summarize(lines), Lines: lines}, nil
}

func normalizeItem(item Item) Line {
	addon := AddonMoney(item.Variants)
	final := item.BasePrice
	if item.FinalPrice != nil {
		final = *item.FinalPrice
	}
	name := item.Name
	if name == "" {
		name = "service"
	}
	return Line{
		ServiceID:  item.ServiceID,
		Name:       name,
		BasePrice:  floorMoney(item.BasePrice + addon),
		FinalPrice: floorMoney(final + addon),
		Variants:   item.Variants,
	}
}

// AddonMoney sums the priced selections.
func AddonMoney(fields types.VariantFields) float64 {
	var sum float64
	for _, f := range fields {
		sum += f.Amount()
	}
	return sum
}

// Summarize computes bill totals from line snapshots. The bill total is the sum
// of final prices; the list total never drops below it.
func Summarize(lines []Line) Totals {
	var list, bill int64
	for _, l := range lines {
		list += l.BasePrice
		bill += l.FinalPrice
	}
	if list < bill {
		list = bill
	}
	return Totals{ListTotal: list, DiscountTotal: list - bill, BillTotal: bill}
}

func floorMoney(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(v))
}
