package splitrules

import "github.com/shopspring/decimal"

// BasisPoints is the whole of a payment expressed in basis points.
const BasisPoints = 10000

// Rule is an artist/shop revenue share. A resolved rule always sums to
// BasisPoints.
type Rule struct {
	ArtistRateBps int `json:"artistRateBps"`
	ShopRateBps   int `json:"shopRateBps"`
}

// Normalize rescales a drifted pair so it sums to BasisPoints, rounding the
// artist share half away from zero. ok is false when the pair carries no ratio.
func Normalize(artistBps, shopBps int) (Rule, bool) {
	if artistBps < 0 {
		artistBps = 0
	}
	if shopBps < 0 {
		shopBps = 0
	}
	sum := artistBps + shopBps
	if sum == 0 {
		return Rule{}, false
	}
	if sum == BasisPoints {
		return Rule{ArtistRateBps: artistBps, ShopRateBps: shopBps}, true
	}
	artist := decimal.NewFromInt(int64(artistBps)).
		Mul(decimal.NewFromInt(BasisPoints)).
		DivRound(decimal.NewFromInt(int64(sum)), 0).
		IntPart()
	return Rule{ArtistRateBps: int(artist), ShopRateBps: BasisPoints - int(artist)}, true
}

// Validate reports whether the pair may be stored as-is.
func (r Rule) Validate() bool {
	if r.ArtistRateBps < 0 || r.ArtistRateBps > BasisPoints {
		return false
	}
	if r.ShopRateBps < 0 || r.ShopRateBps > BasisPoints {
		return false
	}
	return r.ArtistRateBps+r.ShopRateBps == BasisPoints
}
