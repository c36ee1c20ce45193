package domain

// AccountType enumerates the kinds of accounts the keyring manages. Ids are
// assigned per type: a new account gets the count of existing accounts of
// its type.
type AccountType int

const (
	HDAccountType AccountType = iota
	ImportedAccountType
	TrezorAccountType
	LedgerAccountType
)

func (t AccountType) String() string {
	switch t {
	case HDAccountType:
		return "hd"
	case ImportedAccountType:
		return "imported"
	case TrezorAccountType:
		return "trezor"
	case LedgerAccountType:
		return "ledger"
	default:
		return "unknown"
	}
}

// AccountTypes lists all supported account types in id-assignment order.
var AccountTypes = []AccountType{
	HDAccountType, ImportedAccountType, TrezorAccountType, LedgerAccountType,
}

// ChainFamily groups networks sharing the same account and signing model.
type ChainFamily int

const (
	UtxoChainFamily ChainFamily = iota
	EvmChainFamily
)

func (f ChainFamily) String() string {
	switch f {
	case UtxoChainFamily:
		return "utxo"
	case EvmChainFamily:
		return "evm"
	default:
		return "unknown"
	}
}

// IsSupported reports whether the family is one the keyring can operate on.
func (f ChainFamily) IsSupported() bool {
	return f == UtxoChainFamily || f == EvmChainFamily
}

// Keys under which the persisted records are stored.
const (
	VaultKey             = "vault"
	VaultKeysKey         = "vault-keys"
	WalletStateKey       = "walletState"
	Utf8ErrorKey         = "utf8Error"
	EthAccountsCacheKey  = "ethAccountsCache"
	UtxoAccountsCacheKey = "utxoAccountsCache"
)
