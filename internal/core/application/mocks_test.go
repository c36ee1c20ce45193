package application_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyring-labs/keyringd/internal/core/application"
	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/internal/infrastructure/storage/inmemory"
	"github.com/keyring-labs/keyringd/pkg/explorer"
)

var ctx = context.Background()

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	deviceMnemonic = "legal winner thank year wave sausage worth useful " +
		"legal winner thank yellow"
	testPassword  = "Sup3rS3cretPassw0rd"
	otherPassword = "An0therS3cretPassw0rd"
)

func bitcoinNetwork() *domain.Network {
	return &domain.Network{
		Name:         "bitcoin",
		ChainFamily:  domain.UtxoChainFamily,
		Slip44:       0,
		Currency:     "BTC",
		URL:          "https://blockstream.info",
		ExplorerURL:  "https://blockstream.info/api",
		Bech32HRP:    "bc",
		PubKeyHashID: 0x00,
		ScriptHashID: 0x05,
		WIFID:        0x80,
	}
}

func testnetNetwork() *domain.Network {
	return &domain.Network{
		Name:         "testnet",
		ChainFamily:  domain.UtxoChainFamily,
		Slip44:       1,
		Currency:     "tBTC",
		URL:          "https://blockstream.info/testnet",
		ExplorerURL:  "https://blockstream.info/testnet/api",
		Testnet:      true,
		Bech32HRP:    "tb",
		PubKeyHashID: 0x6f,
		ScriptHashID: 0xc4,
		WIFID:        0xef,
	}
}

func ethereumNetwork() *domain.Network {
	return &domain.Network{
		Name:        "ethereum",
		ChainFamily: domain.EvmChainFamily,
		Slip44:      60,
		Currency:    "ETH",
		URL:         "https://eth.example.org",
		ChainId:     1,
	}
}

func testNetworks() []*domain.Network {
	return []*domain.Network{
		bitcoinNetwork(), testnetNetwork(), ethereumNetwork(),
	}
}

// testHarness wires a keyring service over an in-memory store and mocked
// chain backends. Rebuilding the service over the same store simulates a
// daemon restart.
type testHarness struct {
	svc    application.KeyringService
	secure ports.SecureStore
	chain  *mockChainQuery
	evm    *mockEvmChain
	// evmErr makes the evm factory fail, simulating an unreachable or
	// mismatching rpc node.
	evmErr  error
	signers map[domain.AccountType]ports.HardwareSigner
}

func newHarness(
	t *testing.T, signers map[domain.AccountType]ports.HardwareSigner,
) *testHarness {
	h := &testHarness{
		secure:  inmemory.NewSecureStore(),
		chain:   &mockChainQuery{},
		evm:     &mockEvmChain{},
		signers: signers,
	}
	h.rebuild(t)
	return h
}

func newUnlockedHarness(t *testing.T) *testHarness {
	h := newHarness(t, nil)
	require.NoError(t, h.svc.CreateVault(ctx, testMnemonic, testPassword))
	return h
}

func (h *testHarness) rebuild(t *testing.T) {
	svc, err := application.NewKeyringService(
		ctx, application.NewKeyringServiceOpts{
			Store: h.secure,
			ChainQueryFactory: func(string) (ports.ChainQuery, error) {
				return h.chain, nil
			},
			EvmChainFactory: func(
				_ context.Context, _ string, chainID uint64,
			) (ports.EvmChain, error) {
				if h.evmErr != nil {
					return nil, h.evmErr
				}
				h.evm.chainID = new(big.Int).SetUint64(chainID)
				return h.evm, nil
			},
			HardwareSigners: h.signers,
			ActiveNetwork:   bitcoinNetwork(),
			Networks:        testNetworks(),
		},
	)
	require.NoError(t, err)
	h.svc = svc
}

// **** ChainQuery ****

type mockChainQuery struct {
	mock.Mock
}

func (m *mockChainQuery) GetUnspentsForAddresses(
	addresses []string,
) ([]explorer.Utxo, error) {
	args := m.Called(addresses)

	var res []explorer.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockChainQuery) GetTransactionHex(txid string) (string, error) {
	args := m.Called(txid)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockChainQuery) EstimateFees(targetBlocks int) (float64, error) {
	args := m.Called(targetBlocks)

	var res float64
	if a := args.Get(0); a != nil {
		res = a.(float64)
	}
	return res, args.Error(1)
}

func (m *mockChainQuery) BroadcastTransaction(txHex string) (string, error) {
	args := m.Called(txHex)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// **** EvmChain ****

type mockEvmChain struct {
	mock.Mock
	chainID *big.Int
	closed  bool
}

func (m *mockEvmChain) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

func (m *mockEvmChain) PendingNonceAt(
	_ context.Context, address string,
) (uint64, error) {
	args := m.Called(address)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) BalanceAt(
	_ context.Context, address string,
) (*big.Int, error) {
	args := m.Called(address)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	args := m.Called()

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) BaseFee(_ context.Context) (*big.Int, error) {
	args := m.Called()

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) EstimateGas(
	_ context.Context, from, to string, value *big.Int, data []byte,
) (uint64, error) {
	args := m.Called(from, to, value, data)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) SendRawTransaction(
	_ context.Context, rawTxHex string,
) (string, error) {
	args := m.Called(rawTxHex)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockEvmChain) Close() {
	m.closed = true
}
