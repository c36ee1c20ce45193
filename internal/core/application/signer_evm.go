package application

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
)

type evmTxParams struct {
	chainID  *big.Int
	nonce    uint64
	to       string
	value    *big.Int
	gasLimit uint64
	feeCap   *big.Int
	tipCap   *big.Int
	data     []byte
}

// signEvmWithHardware builds the dynamic fee transaction, hands its
// serialization to the device and reassembles the signed raw transaction
// from the returned signature components.
func (t *transactionService) signEvmWithHardware(
	ctx context.Context, account *domain.Account, params *evmTxParams,
) (string, error) {
	signer, err := t.store.hardwareSignerForType(account.Type())
	if err != nil {
		return "", err
	}
	if !signer.IsConnected() {
		if err := signer.Connect(ctx); err != nil {
			return "", err
		}
	}

	to := common.HexToAddress(params.to)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   params.chainID,
		Nonce:     params.nonce,
		GasTipCap: params.tipCap,
		GasFeeCap: params.feeCap,
		Gas:       params.gasLimit,
		To:        &to,
		Value:     params.value,
		Data:      params.data,
	})
	rawUnsigned, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}

	reply, err := signer.SignEvmTransaction(
		ctx, account.DerivationPath, rawUnsigned,
	)
	if err != nil {
		return "", err
	}
	signature, err := assembleEvmSignature(reply)
	if err != nil {
		return "", err
	}

	signedTx, err := tx.WithSignature(
		types.NewLondonSigner(params.chainID), signature,
	)
	if err != nil {
		return "", err
	}
	rawSigned, err := signedTx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(rawSigned), nil
}

// assembleEvmSignature packs the r||s||v components returned by a device
// into the 65 byte form go-ethereum signers expect, normalizing legacy
// 27/28 recovery ids.
func assembleEvmSignature(reply *ports.EvmSignature) ([]byte, error) {
	r, ok := new(big.Int).SetString(strings.TrimPrefix(reply.R, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("malformed signature component r")
	}
	s, ok := new(big.Int).SetString(strings.TrimPrefix(reply.S, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("malformed signature component s")
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(reply.V, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("malformed signature component v")
	}

	signature := make([]byte, 65)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:64])
	recovery := v.Uint64()
	if recovery >= 27 {
		recovery -= 27
	}
	signature[64] = byte(recovery)
	return signature, nil
}
