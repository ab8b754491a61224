package enums

import "fmt"

// BillType classifies what a bill settles.
type BillType string

const (
	BillTypeAppointment       BillType = "APPOINTMENT"
	BillTypeWalkIn            BillType = "WALK_IN"
	BillTypeOther             BillType = "OTHER"
	BillTypeStoredValueTopup  BillType = "STORED_VALUE_TOPUP"
	BillTypeStoredValueRefund BillType = "STORED_VALUE_REFUND"
)

var validBillTypes = []BillType{
	BillTypeAppointment,
	BillTypeWalkIn,
	BillTypeOther,
	BillTypeStoredValueTopup,
	BillTypeStoredValueRefund,
}

// String implements fmt.Stringer.
func (b BillType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillType.
func (b BillType) IsValid() bool {
	for _, candidate := range validBillTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillType converts raw input into a BillType.
func ParseBillType(value string) (BillType, error) {
	for _, candidate := range validBillTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bill type %q", value)
}

// IsStoredValue reports whether the bill moves money into or out of a
// customer wallet instead of paying for a service.
func (b BillType) IsStoredValue() bool {
	return b == BillTypeStoredValueTopup || b == BillTypeStoredValueRefund
}
