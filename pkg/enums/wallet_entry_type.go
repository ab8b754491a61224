package enums

import "fmt"

// WalletEntryType tags a stored-value ledger entry.
type WalletEntryType string

const (
	WalletEntryTopup WalletEntryType = "TOPUP"
	WalletEntrySpend WalletEntryType = "SPEND"
)

var validWalletEntryTypes = []WalletEntryType{
	WalletEntryTopup,
	WalletEntrySpend,
}

// String implements fmt.Stringer.
func (w WalletEntryType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletEntryType.
func (w WalletEntryType) IsValid() bool {
	for _, candidate := range validWalletEntryTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletEntryType converts raw input into a WalletEntryType.
func ParseWalletEntryType(value string) (WalletEntryType, error) {
	for _, candidate := range validWalletEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry type %q", value)
}

// Opposite returns the entry type that offsets w.
func (w WalletEntryType) Opposite() WalletEntryType {
	if w == WalletEntryTopup {
		return WalletEntrySpend
	}
	return WalletEntryTopup
}
