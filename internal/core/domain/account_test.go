package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

func TestAccountType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		account      *domain.Account
		expectedType domain.AccountType
		isHardware   bool
	}{
		{&domain.Account{}, domain.HDAccountType, false},
		{&domain.Account{IsImported: true}, domain.ImportedAccountType, false},
		{&domain.Account{IsTrezor: true}, domain.TrezorAccountType, true},
		{&domain.Account{IsLedger: true}, domain.LedgerAccountType, true},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expectedType, tt.account.Type())
		require.Equal(t, tt.isHardware, tt.account.IsHardware())
	}
}

func TestAccountClone(t *testing.T) {
	t.Parallel()

	account := &domain.Account{
		Id:            2,
		Label:         "Savings",
		Address:       "bc1qaddr",
		Xpub:          "zpub...",
		EncryptedXprv: "ciphertext",
		Balances:      map[string]uint64{"btc": 5000},
	}

	cloned := account.Clone()
	cloned.Balances["btc"] = 0
	require.Equal(t, uint64(5000), account.Balances["btc"])

	sanitized := account.Sanitized()
	require.Empty(t, sanitized.EncryptedXprv)
	require.Equal(t, "ciphertext", account.EncryptedXprv)
	require.Equal(t, account.Address, sanitized.Address)
}
