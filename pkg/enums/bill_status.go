package enums

import "fmt"

// BillStatus tracks the settlement state of a bill.
type BillStatus string

const (
	BillStatusOpen    BillStatus = "OPEN"
	BillStatusSettled BillStatus = "SETTLED"
	BillStatusVoid    BillStatus = "VOID"
)

var validBillStatuses = []BillStatus{
	BillStatusOpen,
	BillStatusSettled,
	BillStatusVoid,
}

// String implements fmt.Stringer.
func (s BillStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BillStatus.
func (s BillStatus) IsValid() bool {
	for _, candidate := range validBillStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBillStatus converts raw input into a BillStatus.
func ParseBillStatus(value string) (BillStatus, error) {
	for _, candidate := range validBillStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bill status %q", value)
}
