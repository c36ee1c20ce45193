package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignTransactionOpts is the struct given to SignTransaction method
type SignTransactionOpts struct {
	ChainID   *big.Int
	Nonce     uint64
	To        string
	Value     *big.Int
	GasLimit  uint64
	GasFeeCap *big.Int
	GasTipCap *big.Int
	Data      []byte
}

func (o SignTransactionOpts) validate() error {
	if o.ChainID == nil || o.ChainID.Sign() <= 0 {
		return ErrNullChainID
	}
	if !common.IsHexAddress(o.To) {
		return ErrInvalidRecipientAddress
	}
	if o.Value == nil || o.Value.Sign() < 0 {
		return ErrNullValue
	}
	if o.GasFeeCap == nil || o.GasTipCap == nil {
		return ErrNullGasCaps
	}
	if o.GasLimit <= 0 {
		return ErrNullGasLimit
	}
	return nil
}

// SignTransaction signs an EIP-1559 transaction with the account key and
// returns the raw signed transaction along with its hash, both hex encoded.
func (a *Account) SignTransaction(opts SignTransactionOpts) (string, string, error) {
	if err := opts.validate(); err != nil {
		return "", "", err
	}

	to := common.HexToAddress(opts.To)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   opts.ChainID,
		Nonce:     opts.Nonce,
		GasTipCap: opts.GasTipCap,
		GasFeeCap: opts.GasFeeCap,
		Gas:       opts.GasLimit,
		To:        &to,
		Value:     opts.Value,
		Data:      opts.Data,
	})

	signedTx, err := types.SignTx(
		tx, types.NewLondonSigner(opts.ChainID), a.privateKey,
	)
	if err != nil {
		return "", "", err
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return "", "", err
	}
	return hexutil.Encode(rawTx), signedTx.Hash().Hex(), nil
}

// SignMessage signs the given message with the account key following the
// personal_sign convention, ie. hashing it prefixed with
// "\x19Ethereum Signed Message:\n" and its byte length.
func (a *Account) SignMessage(message []byte) (string, error) {
	if len(message) <= 0 {
		return "", ErrNullMessage
	}
	sig, err := crypto.Sign(accounts.TextHash(message), a.privateKey)
	if err != nil {
		return "", err
	}
	// recovery id to legacy V
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// SignTypedData signs the EIP712 digest assembled from the given domain
// separator and message hash.
func (a *Account) SignTypedData(domainHash, messageHash []byte) (string, error) {
	if len(domainHash) != 32 || len(messageHash) != 32 {
		return "", ErrInvalidTypedDataHash
	}
	digest := crypto.Keccak256([]byte{0x19, 0x01}, domainHash, messageHash)
	sig, err := crypto.Sign(digest, a.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
