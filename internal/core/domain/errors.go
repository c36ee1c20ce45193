package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPassword ...
	ErrInvalidPassword = errors.New("password is not valid")
	// ErrInvalidPrevPassword ...
	ErrInvalidPrevPassword = errors.New("previous password is not valid")
	// ErrWalletLocked is thrown when trying to make an operation that requires the wallet to be unlocked
	ErrWalletLocked = errors.New("wallet must be unlocked to perform this operation")
	// ErrVaultNotInitialized ...
	ErrVaultNotInitialized = errors.New("vault is not initialized")
	// ErrVaultAlreadyInitialized ...
	ErrVaultAlreadyInitialized = errors.New("vault is already initialized")
	// ErrVaultCorrupted is thrown when the vault record decrypts to malformed data
	ErrVaultCorrupted = errors.New("vault data is corrupted, a guided recovery is required")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists ...
	ErrAccountAlreadyExists = errors.New("an account with the same address already exists")
	// ErrInvalidKeyFormat ...
	ErrInvalidKeyFormat = errors.New("key must be either a segwit extended private key or a raw evm private key")
	// ErrChainFamilyMismatch ...
	ErrChainFamilyMismatch = errors.New("network does not belong to the requested chain family")
	// ErrUnsupportedChain ...
	ErrUnsupportedChain = errors.New("chain family not supported")
	// ErrWrongNetworkChainId ...
	ErrWrongNetworkChainId = errors.New("rpc node chain id does not match the network")
	// ErrNetworkNotFound ...
	ErrNetworkNotFound = errors.New("network not found")
	// ErrInvalidNetwork ...
	ErrInvalidNetwork = errors.New("invalid network definition")
	// ErrMissingSignedTx ...
	ErrMissingSignedTx = errors.New("missing signed transaction")
	// ErrHardwareAccountHasNoKey is thrown when requesting the private key of a hardware account
	ErrHardwareAccountHasNoKey = errors.New("hardware accounts do not store private keys")
	// ErrRemoveActiveNetwork ...
	ErrRemoveActiveNetwork = errors.New("the active network cannot be removed")
)

// Codes classifying transaction pipeline failures. Creation and send
// failures are distinct on purpose: a failed build must never surface as a
// failed broadcast.
const (
	InsufficientFunds         = "INSUFFICIENT_FUNDS"
	InvalidFeeRate            = "INVALID_FEE_RATE"
	InvalidAssetAllocation    = "INVALID_ASSET_ALLOCATION"
	TransactionCreationFailed = "TRANSACTION_CREATION_FAILED"
	TransactionSendFailed     = "TRANSACTION_SEND_FAILED"
)

// TxError is the structured error returned by the transaction pipeline.
// Amounts are expressed in coin units.
type TxError struct {
	Code      string
	Message   string
	Amount    float64
	Required  float64
	Shortfall float64
}

func (e *TxError) Error() string {
	if len(e.Message) > 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// NewTxError returns a structured transaction error with the given code and
// message.
func NewTxError(code, message string) *TxError {
	return &TxError{Code: code, Message: message}
}

// NewInsufficientFundsError returns the structured error reporting how much
// was available, how much the transfer needed and the missing difference.
func NewInsufficientFundsError(available, required float64) *TxError {
	return &TxError{
		Code:      InsufficientFunds,
		Message:   "not enough funds to cover amount and fees",
		Amount:    available,
		Required:  required,
		Shortfall: required - available,
	}
}
