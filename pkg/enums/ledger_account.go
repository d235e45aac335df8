package enums

import "fmt"

// LedgerAccount selects which customer balance an entry moves.
type LedgerAccount string

const (
	LedgerAccountLoyalty LedgerAccount = "loyalty"
	LedgerAccountWallet  LedgerAccount = "wallet"
)

var validLedgerAccounts = []LedgerAccount{
	LedgerAccountLoyalty,
	LedgerAccountWallet,
}

// IsValid reports whether the value is a known LedgerAccount.
func (l LedgerAccount) IsValid() bool {
	for _, candidate := range validLedgerAccounts {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerAccount converts the raw string to LedgerAccount.
func ParseLedgerAccount(value string) (LedgerAccount, error) {
	for _, candidate := range validLedgerAccounts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger account %q", value)
}
