package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/types"
)

// Payload is a cart snapshot as stored by the booking subsystem. Either Items
// or Total must be present for a bill to be derived from it.
type Payload struct {
	Items []Item   `json:"items"`
	Total *float64 `json:"total,omitempty"`
}

// Item is one cart line with its variant selections already classified.
type Item struct {
	ServiceID  *uuid.UUID          `json:"serviceId,omitempty"`
	Name       string              `json:"name"`
	BasePrice  float64             `json:"basePrice"`
	FinalPrice *float64            `json:"finalPrice,omitempty"`
	Variants   types.VariantFields `json:"variants,omitempty"`
}

// legacyCategoricalKeys are the selection keys whose numeric values were never
// money in payloads written before variants carried an explicit kind.
var legacyCategoricalKeys = map[string]struct{}{
	"size":       {},
	"color":      {},
	"position":   {},
	"style":      {},
	"complexity": {},
	"technique":  {},
	"side":       {},
}

// Decode parses a raw cart snapshot. A nil or empty document decodes to an
// empty payload, which Normalize rejects with ErrNoDerivation.
func Decode(raw []byte) (Payload, error) {
	var p Payload
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return Payload{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return p, nil
}

type itemWire struct {
	ServiceID  *uuid.UUID      `json:"serviceId"`
	Name       string          `json:"name"`
	BasePrice  *float64        `json:"basePrice"`
	Price      *float64        `json:"price"`
	FinalPrice *float64        `json:"finalPrice"`
	Variants   json.RawMessage `json:"variants"`
}

// UnmarshalJSON accepts tagged variant arrays as well as the older flat
// selection maps.
func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	variants, err := decodeVariants(w.Variants)
	if err != nil {
		return err
	}
	*i = Item{
		ServiceID:  w.ServiceID,
		Name:       w.Name,
		FinalPrice: w.FinalPrice,
		Variants:   variants,
	}
	switch {
	case w.BasePrice != nil:
		i.BasePrice = *w.BasePrice
	case w.Price != nil:
		i.BasePrice = *w.Price
	}
	return nil
}

func decodeVariants(raw json.RawMessage) (types.VariantFields, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var tagged types.VariantFields
		if err := json.Unmarshal(trimmed, &tagged); err != nil {
			return nil, fmt.Errorf("decode variants: %w", err)
		}
		for _, f := range tagged {
			if f.Kind != types.VariantCategorical && f.Kind != types.VariantPriced {
				return nil, fmt.Errorf("variant %q has unknown kind %q", f.Key, f.Kind)
			}
		}
		return tagged, nil
	}

	var selections map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &selections); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(types.VariantFields, 0, len(keys))
	for _, key := range keys {
		field, err := classify(key, selections[key])
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// classify turns one map entry into a tagged field. Entries that already carry
// a kind keep it; bare values are classified by the legacy key list.
func classify(key string, raw json.RawMessage) (types.VariantField, error) {
	var tagged struct {
		Kind  *types.VariantKind `json:"kind"`
		Value any                `json:"value"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Kind != nil {
			if *tagged.Kind != types.VariantCategorical && *tagged.Kind != types.VariantPriced {
				return types.VariantField{}, fmt.Errorf("variant %q has unknown kind %q", key, *tagged.Kind)
			}
			return types.VariantField{Key: key, Kind: *tagged.Kind, Value: tagged.Value}, nil
		}
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return types.VariantField{}, fmt.Errorf("decode variant %q: %w", key, err)
	}
	kind := types.VariantCategorical
	if _, numeric := types.Number(value); numeric {
		if _, categorical := legacyCategoricalKeys[strings.ToLower(key)]; !categorical {
			kind = types.VariantPriced
		}
	}
	return types.VariantField{Key: key, Kind: kind, Value: value}, nil
}
