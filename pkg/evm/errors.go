package evm

import "errors"

var (
	// ErrNullSeed ...
	ErrNullSeed = errors.New("seed must not be null")
	// ErrInvalidPrivateKey ...
	ErrInvalidPrivateKey = errors.New("private key must be a 32-byte hex string")
	// ErrNullChainID ...
	ErrNullChainID = errors.New("chain id must not be null")
	// ErrInvalidRecipientAddress ...
	ErrInvalidRecipientAddress = errors.New("recipient is not a valid evm address")
	// ErrNullValue ...
	ErrNullValue = errors.New("value must not be null")
	// ErrNullGasCaps ...
	ErrNullGasCaps = errors.New("gas fee cap and gas tip cap must not be null")
	// ErrNullGasLimit ...
	ErrNullGasLimit = errors.New("gas limit must not be null")
	// ErrNullMessage ...
	ErrNullMessage = errors.New("message must not be null")
	// ErrInvalidTypedDataHash ...
	ErrInvalidTypedDataHash = errors.New("typed data hashes must be 32 bytes long")
	// ErrNullRPCURL ...
	ErrNullRPCURL = errors.New("rpc url must not be null")
	// ErrChainIdMismatch ...
	ErrChainIdMismatch = errors.New("rpc node chain id does not match the expected one")
	// ErrMissingBaseFee ...
	ErrMissingBaseFee = errors.New("rpc node did not report a base fee")
	// ErrNullRawTx ...
	ErrNullRawTx = errors.New("raw transaction must not be null")
)
