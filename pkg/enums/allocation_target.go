package enums

import "fmt"

// AllocationTarget names the revenue bucket of a payment allocation.
type AllocationTarget string

const (
	AllocationTargetArtist AllocationTarget = "ARTIST"
	AllocationTargetShop   AllocationTarget = "SHOP"
)

var validAllocationTargets = []AllocationTarget{
	AllocationTargetArtist,
	AllocationTargetShop,
}

// String implements fmt.Stringer.
func (a AllocationTarget) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AllocationTarget.
func (a AllocationTarget) IsValid() bool {
	for _, candidate := range validAllocationTargets {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAllocationTarget converts raw input into a AllocationTarget.
func ParseAllocationTarget(value string) (AllocationTarget, error) {
	for _, candidate := range validAllocationTargets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation target %q", value)
}
