package ports

import (
	"context"
	"math/big"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

// ChainQuery is the narrow view over a UTXO chain explorer the keyring
// consumes: unspents of the wallet addresses, fee quotes and transaction
// broadcasting. Implemented by pkg/explorer services.
type ChainQuery interface {
	// GetUnspentsForAddresses fetches the utxos of the given addresses.
	GetUnspentsForAddresses(addresses []string) ([]explorer.Utxo, error)
	// GetTransactionHex fetches a transaction in hex format given its hash.
	GetTransactionHex(txid string) (string, error)
	// EstimateFees returns the fee rate expected to confirm a transaction
	// within the given number of blocks, in satoshis per kilobyte.
	EstimateFees(targetBlocks int) (float64, error)
	// BroadcastTransaction submits the given transaction in hex format to
	// the network and returns its hash.
	BroadcastTransaction(txHex string) (string, error)
}

// EvmChain is the provider surface of an EVM network. The chain id is read
// once when the provider is built and asserted against the expected one, so
// implementations always answer ChainID from memory.
type EvmChain interface {
	ChainID() *big.Int
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
	EstimateGas(
		ctx context.Context, from, to string, value *big.Int, data []byte,
	) (uint64, error)
	SendRawTransaction(ctx context.Context, rawTxHex string) (string, error)
	Close()
}
