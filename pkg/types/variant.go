package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// VariantKind states whether a variant selection carries money.
type VariantKind string

const (
	VariantCategorical VariantKind = "categorical"
	VariantPriced      VariantKind = "priced"
)

// VariantField is one tagged variant selection on a bill line item. Only
// priced fields contribute add-on money.
type VariantField struct {
	Key   string      `json:"key"`
	Kind  VariantKind `json:"kind"`
	Value any         `json:"value"`
}

// Amount returns the add-on money carried by the field. Categorical fields and
// priced fields with a non-numeric or non-finite value carry none.
func (v VariantField) Amount() float64 {
	if v.Kind != VariantPriced {
		return 0
	}
	n, ok := Number(v.Value)
	if !ok {
		return 0
	}
	return n
}

// Number reports the numeric value of a decoded JSON scalar.
func Number(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// VariantFields is persisted as a JSONB array of tagged selections.
type VariantFields []VariantField

// Value serializes the selections to JSON.
func (v VariantFields) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the selections.
func (v *VariantFields) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded VariantFields
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode variant fields: %w", err)
	}
	*v = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
