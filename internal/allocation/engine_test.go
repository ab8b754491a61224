package allocation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

var seventy = &splitrules.Rule{ArtistRateBps: 7000, ShopRateBps: 3000}

func TestComputeTwoPaymentsReachTargets(t *testing.T) {
	first := Compute(Input{Amount: 4000, Method: enums.PaymentMethodCash, Rule: seventy, BillTotal: 10000})
	assert.Equal(t, Split{Artist: 2800, Shop: 1200}, first)

	second := Compute(Input{Amount: 6000, Method: enums.PaymentMethodCard, Rule: seventy, BillTotal: 10000, Allocated: first})
	assert.Equal(t, Split{Artist: 4200, Shop: 1800}, second)

	total := first.Add(second)
	assert.Equal(t, Split{Artist: 7000, Shop: 3000}, total)
}

func TestComputeZeroSplits(t *testing.T) {
	assert.Equal(t, Split{}, Compute(Input{Amount: 500, Method: enums.PaymentMethodCash, BillTotal: 500}))
	assert.Equal(t, Split{}, Compute(Input{Amount: 500, Method: enums.PaymentMethodStoredValue, Rule: seventy, BillTotal: 500}))
	assert.Equal(t, Split{}, Compute(Input{Amount: -500, Method: enums.PaymentMethodStoredValue, Rule: seventy, BillTotal: 500}))
}

func TestComputeRefundUsesFlatRatio(t *testing.T) {
	got := Compute(Input{Amount: -1001, Method: enums.PaymentMethodCash, Rule: seventy, BillTotal: 10000, Allocated: Split{Artist: 7000, Shop: 3000}})
	assert.Equal(t, Split{Artist: -701, Shop: -300}, got)
	assert.Equal(t, int64(-1001), got.Total())
}

func TestComputeOverpaymentFallsBackToFlat(t *testing.T) {
	got := Compute(Input{Amount: 1000, Method: enums.PaymentMethodTransfer, Rule: seventy, BillTotal: 10000, Allocated: Split{Artist: 7000, Shop: 3000}})
	assert.Equal(t, Split{Artist: 700, Shop: 300}, got)
}

func TestComputeClampsWhenOneBucketIsOverfilled(t *testing.T) {
	// Artist bucket already exceeds its target after a rule change.
	got := Compute(Input{Amount: 1000, Method: enums.PaymentMethodCash, Rule: seventy, BillTotal: 10000, Allocated: Split{Artist: 8000, Shop: 0}})
	assert.Equal(t, Split{Artist: 0, Shop: 1000}, got)
}

func TestComputeZeroTotalBillUsesFlat(t *testing.T) {
	got := Compute(Input{Amount: 333, Method: enums.PaymentMethodCash, Rule: seventy, BillTotal: 0})
	assert.Equal(t, Split{Artist: 233, Shop: 100}, got)
}

func TestTargetsRoundHalfAwayFromZero(t *testing.T) {
	rule := splitrules.Rule{ArtistRateBps: 5000, ShopRateBps: 5000}
	assert.Equal(t, Split{Artist: 1, Shop: 0}, Targets(1, rule))
	assert.Equal(t, Split{Artist: 2, Shop: 1}, Targets(3, rule))
}

func TestComputeConvergesAcrossRandomPaymentSplits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rules := []splitrules.Rule{{ArtistRateBps: 7000, ShopRateBps: 3000}, {ArtistRateBps: 3333, ShopRateBps: 6667}, {ArtistRateBps: 5000, ShopRateBps: 5000}, {ArtistRateBps: 10000, ShopRateBps: 0}, {ArtistRateBps: 1, ShopRateBps: 9999}}

	for iter := 0; iter < 500; iter++ {
		rule := rules[iter%len(rules)]
		billTotal := int64(rng.Intn(100000) + 1)
		parts := rng.Intn(8) + 1

		var allocated Split
		remaining := billTotal
		for p := 0; p < parts && remaining > 0; p++ {
			amount := remaining
			if p < parts-1 {
				amount = int64(rng.Int63n(remaining)) + 1
			}
			remaining -= amount

			split := Compute(Input{Amount: amount, Method: enums.PaymentMethodCash, Rule: &rule, BillTotal: billTotal, Allocated: allocated})
			assert.Equal(t, amount, split.Total())
			assert.GreaterOrEqual(t, split.Artist, int64(0))
			assert.GreaterOrEqual(t, split.Shop, int64(0))
			allocated = allocated.Add(split)
		}
		if remaining > 0 {
			continue
		}

		target := Targets(billTotal, rule)
		diff := allocated.Artist - target.Artist
		assert.LessOrEqualf(t, diff, int64(1), "bill %d rule %+v", billTotal, rule)
		assert.GreaterOrEqualf(t, diff, int64(-1), "bill %d rule %+v", billTotal, rule)
	}
}
