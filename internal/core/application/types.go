package application

import (
	"github.com/shopspring/decimal"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

// SignerKind selects the signing leg of the transaction pipeline. The enum
// is closed: dispatching an unknown kind fails instead of falling back.
type SignerKind int

const (
	HDSignerKind SignerKind = iota
	ImportedSignerKind
	TrezorSignerKind
	LedgerSignerKind
)

func (k SignerKind) String() string {
	switch k {
	case HDSignerKind:
		return "hd"
	case ImportedSignerKind:
		return "imported"
	case TrezorSignerKind:
		return "trezor"
	case LedgerSignerKind:
		return "ledger"
	default:
		return "unknown"
	}
}

// SignerKindForAccount returns the signer kind matching the type of the
// given account.
func SignerKindForAccount(account *domain.Account) SignerKind {
	switch account.Type() {
	case domain.TrezorAccountType:
		return TrezorSignerKind
	case domain.LedgerAccountType:
		return LedgerSignerKind
	case domain.ImportedAccountType:
		return ImportedSignerKind
	default:
		return HDSignerKind
	}
}

// UnlockReply reports the outcome of an unlock. NeedsRecovery is true when a
// previous session flagged corrupted records: the caller should walk the
// user through a guided recovery before trusting the account book.
type UnlockReply struct {
	NeedsRecovery bool
}

// SwitchNetworkReply is returned by SwitchNetwork once the transition
// committed.
type SwitchNetworkReply struct {
	Network       *domain.Network
	ActiveAccount *domain.Account
}

// BuildTransferReply wraps the envelope of a built transaction along with
// its fee, expressed in coin units.
type BuildTransferReply struct {
	Envelope string
	Fee      decimal.Decimal
}

// BuildNativeTransferOpts is the struct given to BuildNativeTransfer method
type BuildNativeTransferOpts struct {
	Recipient string
	// Amount is denominated in coin units.
	Amount decimal.Decimal
	// FeeRate overrides the estimated fee rate when set, in sats per
	// virtual byte.
	FeeRate               *float64
	SubtractFeeFromAmount bool
}

// AssetRecipient is the pair address/amount of the beneficiary of an asset
// allocation, the amount denominated in asset base units.
type AssetRecipient struct {
	Address string
	Amount  uint64
}

// BuildAssetTransferOpts is the struct given to BuildAssetTransfer method
type BuildAssetTransferOpts struct {
	// Allocations maps every asset id to its recipients.
	Allocations map[string][]AssetRecipient
	FeeRate     *float64
}

// SendEvmTransactionOpts is the struct given to SendEvmTransaction method
type SendEvmTransactionOpts struct {
	To string
	// Amount is denominated in coin units.
	Amount decimal.Decimal
	Data   []byte
	// GasLimit is estimated when left to zero.
	GasLimit uint64
}
