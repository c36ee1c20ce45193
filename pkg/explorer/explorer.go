package explorer

import (
	"github.com/btcsuite/btcd/wire"
)

// Utxo represents a transaction output in a UTXO chain. Asset is the tag of
// the token allocation the output carries, if any, and is empty for plain
// native outputs.
type Utxo interface {
	Hash() string
	Index() uint32
	Value() uint64
	Asset() string
	Script() []byte
	IsConfirmed() bool
	Parse() (*wire.TxIn, *wire.TxOut, error)
}

// Transaction represents a transaction in a UTXO chain.
type Transaction interface {
	Hash() string
	Version() int
	Locktime() int
	Inputs() []*wire.TxIn
	Outputs() []*wire.TxOut
	Size() int
	Weight() int
	Confirmed() bool
}

// Service is representation of an explorer that allows to fetch data from
// the blockchain and to broadcast transactions.
type Service interface {
	// GetUnspents fetches the utxos for the given address.
	GetUnspents(addr string) (unspents []Utxo, err error)
	// GetUnspentsForAddresses fetches the utxos of the given list of
	// addresses.
	GetUnspentsForAddresses(addresses []string) (unspents []Utxo, err error)
	// GetTransaction fetches the parsed transaction given its hash.
	GetTransaction(txid string) (tx Transaction, err error)
	// GetTransactionHex fetches the transaction in hex format given its hash.
	GetTransactionHex(txid string) (txhex string, err error)
	// IsTransactionConfirmed returns whether the tx identified by its hash
	// has been included in the blockchain.
	IsTransactionConfirmed(txid string) (confirmed bool, err error)
	// GetTransactionStatus returns the status of the tx identified by its
	// hash.
	GetTransactionStatus(txid string) (status map[string]interface{}, err error)
	// EstimateFees returns the fee rate expected to get a transaction
	// confirmed within the given number of blocks, expressed in satoshis
	// per kilobyte.
	EstimateFees(targetBlocks int) (satsPerKilobyte float64, err error)
	// BroadcastTransaction attempts to add the given tx in hex format to
	// the mempool and returns its tx hash.
	BroadcastTransaction(txhex string) (txid string, err error)
	// GetBlockHeight returns the number of blocks of the blockchain.
	GetBlockHeight() (int, error)
}
