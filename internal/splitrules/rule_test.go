package splitrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		artist, shop int
		want         Rule
		ok           bool
	}{
		{name: "already whole", artist: 7000, shop: 3000, want: Rule{7000, 3000}, ok: true},
		{name: "percent scale", artist: 70, shop: 30, want: Rule{7000, 3000}, ok: true},
		{name: "rounds artist half away", artist: 1, shop: 7, want: Rule{1250, 8750}, ok: true},
		{name: "thirds", artist: 1, shop: 2, want: Rule{3333, 6667}, ok: true},
		{name: "over full", artist: 9000, shop: 3000, want: Rule{7500, 2500}, ok: true},
		{name: "negative clamps", artist: -10, shop: 400, want: Rule{0, 10000}, ok: true},
		{name: "empty", artist: 0, shop: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.artist, tt.shop)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, BasisPoints, got.ArtistRateBps+got.ShopRateBps)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	assert.True(t, Rule{10000, 0}.Validate())
	assert.True(t, Rule{6500, 3500}.Validate())
	assert.False(t, Rule{6500, 3000}.Validate())
	assert.False(t, Rule{-1, 10001}.Validate())
	assert.False(t, Rule{10001, -1}.Validate())
}
