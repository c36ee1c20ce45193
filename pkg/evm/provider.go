package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker"

	"github.com/keyring-labs/keyringd/pkg/circuitbreaker"
)

// Provider wraps an ethclient connection behind a circuit breaker. The chain
// id advertised by the node is read once at dial time and asserted against
// the expected one.
type Provider struct {
	client  *ethclient.Client
	chainID *big.Int
	breaker *gobreaker.CircuitBreaker
}

// NewProviderOpts is the struct given to NewProvider method
type NewProviderOpts struct {
	RPCURL          string
	ExpectedChainID uint64
}

func (o NewProviderOpts) validate() error {
	if len(o.RPCURL) <= 0 {
		return ErrNullRPCURL
	}
	if o.ExpectedChainID <= 0 {
		return ErrNullChainID
	}
	return nil
}

// NewProvider dials the RPC node and verifies the advertised eth_chainId
// matches the expected one before returning the provider.
func NewProvider(ctx context.Context, opts NewProviderOpts) (*Provider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if chainID.Uint64() != opts.ExpectedChainID {
		client.Close()
		return nil, fmt.Errorf(
			"%w: got %d, expected %d",
			ErrChainIdMismatch, chainID.Uint64(), opts.ExpectedChainID,
		)
	}

	return &Provider{
		client:  client,
		chainID: chainID,
		breaker: circuitbreaker.NewCircuitBreaker("evm"),
	}, nil
}

// ChainID returns the chain id read from the node at dial time.
func (p *Provider) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}

// PendingNonceAt returns the account nonce of the given address in the
// pending state.
func (p *Provider) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.PendingNonceAt(ctx, common.HexToAddress(address))
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// BalanceAt returns the wei balance of the given address at the latest block.
func (p *Provider) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

// SuggestGasTipCap returns the gas tip cap suggested by the node for a
// timely inclusion.
func (p *Provider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

// BaseFee returns the base fee of the latest block header.
func (p *Provider) BaseFee(ctx context.Context) (*big.Int, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		header, err := p.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, err
		}
		if header.BaseFee == nil {
			return nil, ErrMissingBaseFee
		}
		return header.BaseFee, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

// EstimateGas returns the gas estimate for the given transfer.
func (p *Provider) EstimateGas(
	ctx context.Context, from, to string, value *big.Int, data []byte,
) (uint64, error) {
	toAddress := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddress,
		Value: value,
		Data:  data,
	}
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// SendRawTransaction decodes and broadcasts the given raw signed transaction,
// returning its hash.
func (p *Provider) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	if len(rawTxHex) <= 0 {
		return "", ErrNullRawTx
	}
	rawTx, err := hexutil.Decode(rawTxHex)
	if err != nil {
		return "", err
	}
	tx := &types.Transaction{}
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return "", err
	}

	if _, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.client.SendTransaction(ctx, tx)
	}); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// Close tears down the underlying RPC connection.
func (p *Provider) Close() {
	p.client.Close()
}
