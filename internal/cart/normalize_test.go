package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

func ptr(v float64) *float64 { return &v }

func TestNormalizeAddonFromPricedVariant(t *testing.T) {
	p, err := Decode([]byte(`{"items":[{"name":"Sleeve","basePrice":1000,"variants":{"deposit":200}}]}`))
	require.NoError(t, err)

	res, err := Normalize(p)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, int64(1200), res.Lines[0].BasePrice)
	assert.Equal(t, int64(1200), res.Lines[0].FinalPrice)
	assert.Equal(t, int64(1200), res.BillTotal)
	assert.Equal(t, int64(1200), res.ListTotal)
	assert.Equal(t, int64(0), res.DiscountTotal)
}

func TestNormalizeLegacyCategoricalNumbersCarryNoMoney(t *testing.T) {
	p, err := Decode([]byte(`{"items":[{"name":"Rose","basePrice":800,"finalPrice":700,"variants":{"size":12,"Color":3,"side":"left","gold_leaf":150.5}}]}`))
	require.NoError(t, err)

	fields := p.Items[0].Variants
	require.Len(t, fields, 4)
	kinds := map[string]types.VariantKind{}
	for _, f := range fields {
		kinds[f.Key] = f.Kind
	}
	assert.Equal(t, types.VariantCategorical, kinds["size"])
	assert.Equal(t, types.VariantCategorical, kinds["Color"])
	assert.Equal(t, types.VariantCategorical, kinds["side"])
	assert.Equal(t, types.VariantPriced, kinds["gold_leaf"])

	res, err := Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, int64(950), res.Lines[0].BasePrice)
	assert.Equal(t, int64(850), res.Lines[0].FinalPrice)
	assert.Equal(t, int64(950), res.ListTotal)
	assert.Equal(t, int64(100), res.DiscountTotal)
	assert.Equal(t, int64(850), res.BillTotal)
}

func TestNormalizeTaggedVariantsAreTrusted(t *testing.T) {
	p, err := Decode([]byte(`{"items":[{"name":"Dot","basePrice":500,"variants":[
		{"key":"needle","kind":"categorical","value":7},
		{"key":"size","kind":"priced","value":100}
	]}]}`))
	require.NoError(t, err)

	res, err := Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.BillTotal)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"items":[{"basePrice":1,"variants":[{"key":"x","kind":"money","value":1}]}]}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"items":[{"basePrice":1,"variants":{"x":{"kind":"money","value":1}}}]}`))
	require.Error(t, err)
}

func TestNormalizeFlatTotal(t *testing.T) {
	res, err := Normalize(Payload{Total: ptr(2500.9)})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, FlatTotalName, res.Lines[0].Name)
	assert.Equal(t, int64(2500), res.BillTotal)
	assert.Equal(t, int64(2500), res.ListTotal)
}

func TestNormalizeNoDerivation(t *testing.T) {
	_, err := Normalize(Payload{})
	assert.True(t, errors.Is(err, ErrNoDerivation))

	p, err := Decode(nil)
	require.NoError(t, err)
	_, err = Normalize(p)
	assert.True(t, errors.Is(err, ErrNoDerivation))
}

func TestNormalizeClampsAndFloors(t *testing.T) {
	res, err := Normalize(Payload{Items: []Item{
		{Name: "Cover-up", BasePrice: 100, FinalPrice: ptr(-40)},
		{Name: "Touch-up", BasePrice: 99.99, Variants: types.VariantFields{{Key: "credit", Kind: types.VariantPriced, Value: -500.0}}},
		{BasePrice: 10.7},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Lines[0].FinalPrice)
	assert.Equal(t, int64(100), res.Lines[0].BasePrice)
	assert.Equal(t, int64(0), res.Lines[1].BasePrice)
	assert.Equal(t, "service", res.Lines[2].Name)
	assert.Equal(t, int64(10), res.Lines[2].FinalPrice)

	var finals int64
	for _, l := range res.Lines {
		finals += l.FinalPrice
	}
	assert.Equal(t, res.BillTotal, finals)
}

func TestSummarizeRaisesListToBill(t *testing.T) {
	got := Summarize([]Line{{BasePrice: 100, FinalPrice: 150}, {BasePrice: 200, FinalPrice: 100}})
	assert.Equal(t, Totals{ListTotal: 300, DiscountTotal: 50, BillTotal: 250}, got)

	got = Summarize([]Line{{BasePrice: 100, FinalPrice: 180}})
	assert.Equal(t, Totals{ListTotal: 180, DiscountTotal: 0, BillTotal: 180}, got)
}

func TestDecodeAcceptsPriceAlias(t *testing.T) {
	p, err := Decode([]byte(`{"items":[{"name":"Flash","price":300}]}`))
	require.NoError(t, err)
	assert.Equal(t, 300.0, p.Items[0].BasePrice)
}
