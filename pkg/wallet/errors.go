package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullInputWitnessUtxo ...
	ErrNullInputWitnessUtxo = errors.New("input witness utxo must not be null")
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrNullSeed ...
	ErrNullSeed = errors.New("seed is null")
	// ErrNullMasterKey ...
	ErrNullMasterKey = errors.New("master key is null")
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrNullOutputDerivationPath ...
	ErrNullOutputDerivationPath = fmt.Errorf("output %v", ErrNullDerivationPath)
	// ErrNullChangeDerivationPath ...
	ErrNullChangeDerivationPath = fmt.Errorf("change %v", ErrNullDerivationPath)
	// ErrNullPsbt ...
	ErrNullPsbt = errors.New("psbt base64 must not be null")
	// ErrNullRecipients ...
	ErrNullRecipients = errors.New("recipient list must not be null")
	// ErrNullAssetId ...
	ErrNullAssetId = errors.New("asset id must not be null")
	// ErrNullAssetPayload ...
	ErrNullAssetPayload = errors.New("asset payload must not be null")
	// ErrNullAccountKey ...
	ErrNullAccountKey = errors.New("account extended key must not be null")

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidCypherKey ...
	ErrInvalidCypherKey = errors.New("cypher key must be 32 bytes long")
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidDerivationPathLength ...
	ErrInvalidDerivationPathLength = errors.New(
		"derivation path must be a relative path in the form \"account'/change/index\"",
	)
	// ErrInvalidDerivationPathAccount ...
	ErrInvalidDerivationPathAccount = errors.New(
		"derivation path's account (first elem) must be hardened (suffix \"'\")",
	)
	// ErrInvalidDerivationPathsLength ...
	ErrInvalidDerivationPathsLength = errors.New(
		"length of tx inputs and derivation paths must match",
	)
	// ErrInvalidRecipientAddress ...
	ErrInvalidRecipientAddress = errors.New(
		"recipient address must be a valid address for the given network",
	)
	// ErrInvalidChangeAddress ...
	ErrInvalidChangeAddress = errors.New("change address must be a valid address")
	// ErrInvalidExtendedKey ...
	ErrInvalidExtendedKey = errors.New("extended key is not a valid bip32 key")
	// ErrNotSegwitExtendedKey is returned when parsing extended keys
	// serialized with legacy (xprv/tprv) version bytes: only native segwit
	// keys (zprv/vprv) are accepted.
	ErrNotSegwitExtendedKey = errors.New(
		"extended key is not in native segwit format, only zprv/vprv keys are accepted",
	)
	// ErrIncompatibleExtendedKey ...
	ErrIncompatibleExtendedKey = errors.New(
		"extended key is not compatible with the given network",
	)
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	// ErrOutOfRangeDerivationPathAccount ...
	ErrOutOfRangeDerivationPathAccount = fmt.Errorf(
		"account index must be in range [0, %d]", MaxHardenedValue,
	)

	// ErrEmptyDerivationPaths ...
	ErrEmptyDerivationPaths = errors.New("derivation path list must not be empty")
	// ErrEmptyUnspents ...
	ErrEmptyUnspents = errors.New("unspent list must not be empty")
	// ErrEmptyAllocations ...
	ErrEmptyAllocations = errors.New("asset allocation list must not be empty")

	// ErrZeroOutputAmount ...
	ErrZeroOutputAmount = errors.New("output amount must not be zero")
	// ErrZeroFeeRate ...
	ErrZeroFeeRate = errors.New("fee rate must not be zero")
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New(
		"total unspent amount does not cover target amount plus network fees",
	)
)
