package domain

// Account is a single signing identity of the keyring. HD and imported
// accounts carry their extended (or raw) private key encrypted under the
// session password, hardware accounts never do. DerivationPath is the
// absolute device path hardware accounts were paired with, empty otherwise.
type Account struct {
	Id             int               `json:"id"`
	Label          string            `json:"label"`
	Address        string            `json:"address"`
	Xpub           string            `json:"xpub,omitempty"`
	EncryptedXprv  string            `json:"encryptedXprv,omitempty"`
	DerivationPath string            `json:"derivationPath,omitempty"`
	Balances       map[string]uint64 `json:"balances,omitempty"`
	IsImported     bool              `json:"isImported,omitempty"`
	IsTrezor       bool              `json:"isTrezor,omitempty"`
	IsLedger       bool              `json:"isLedger,omitempty"`
}

// Type returns the account type encoded by the account flags.
func (a *Account) Type() AccountType {
	switch {
	case a.IsTrezor:
		return TrezorAccountType
	case a.IsLedger:
		return LedgerAccountType
	case a.IsImported:
		return ImportedAccountType
	default:
		return HDAccountType
	}
}

// IsHardware reports whether the account keys live on an external device.
func (a *Account) IsHardware() bool {
	return a.IsTrezor || a.IsLedger
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	cloned := *a
	if a.Balances != nil {
		cloned.Balances = make(map[string]uint64, len(a.Balances))
		for asset, balance := range a.Balances {
			cloned.Balances[asset] = balance
		}
	}
	return &cloned
}

// Sanitized returns a copy of the account with the encrypted key material
// stripped, safe to hand out of the keyring.
func (a *Account) Sanitized() *Account {
	cloned := a.Clone()
	cloned.EncryptedXprv = ""
	return cloned
}
