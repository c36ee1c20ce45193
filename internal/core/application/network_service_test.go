package application_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

const firstEvmAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

func TestGetNetworks(t *testing.T) {
	h := newUnlockedHarness(t)

	networks, err := h.svc.GetNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 3)

	active, err := h.svc.GetActiveNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, "bitcoin", active.Name)
	require.Equal(t, domain.UtxoChainFamily, active.ChainFamily)
}

func TestSwitchNetworkValidation(t *testing.T) {
	h := newUnlockedHarness(t)

	_, err := h.svc.SwitchNetwork(ctx, "dogecoin", domain.UtxoChainFamily)
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)

	_, err = h.svc.SwitchNetwork(ctx, "ethereum", domain.UtxoChainFamily)
	require.ErrorIs(t, err, domain.ErrChainFamilyMismatch)

	_, err = h.svc.SwitchNetwork(ctx, "bitcoin", domain.ChainFamily(99))
	require.ErrorIs(t, err, domain.ErrUnsupportedChain)

	h.svc.Lock(ctx)
	_, err = h.svc.SwitchNetwork(ctx, "testnet", domain.UtxoChainFamily)
	require.ErrorIs(t, err, domain.ErrWalletLocked)
}

func TestSwitchNetworkSameNetwork(t *testing.T) {
	h := newUnlockedHarness(t)

	reply, err := h.svc.SwitchNetwork(ctx, "bitcoin", domain.UtxoChainFamily)
	require.NoError(t, err)
	require.Equal(t, "bitcoin", reply.Network.Name)
	require.Equal(t, firstReceiveAddress, reply.ActiveAccount.Address)
}

func TestSwitchNetworkReencodesUtxoAddresses(t *testing.T) {
	h := newUnlockedHarness(t)

	second, err := h.svc.AddNewAccount(ctx, "savings")
	require.NoError(t, err)

	testnetWallet, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: testMnemonic,
		Params:   wallet.TestNetParams(),
	})
	require.NoError(t, err)
	expectedFirst, err := testnetWallet.DeriveReceiveAddress(wallet.DeriveAddressOpts{
		Account: 0,
	})
	require.NoError(t, err)
	expectedSecond, err := testnetWallet.DeriveReceiveAddress(wallet.DeriveAddressOpts{
		Account: 1,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(expectedFirst, "tb1"))

	_, err = h.svc.SwitchNetwork(ctx, "testnet", domain.UtxoChainFamily)
	require.NoError(t, err)

	accounts, err := h.svc.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, expectedFirst, accounts[0].Address)
	require.Equal(t, expectedSecond, accounts[1].Address)

	// switching back restores the mainnet encodings
	_, err = h.svc.SwitchNetwork(ctx, "bitcoin", domain.UtxoChainFamily)
	require.NoError(t, err)
	accounts, err = h.svc.GetAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, firstReceiveAddress, accounts[0].Address)
	require.Equal(t, second.Address, accounts[1].Address)
}

func TestSwitchNetworkAcrossFamilies(t *testing.T) {
	h := newUnlockedHarness(t)

	_, err := h.svc.AddNewAccount(ctx, "savings")
	require.NoError(t, err)

	reply, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
	require.NoError(t, err)
	require.Equal(t, "ethereum", reply.Network.Name)
	// the evm book is empty on first use, the first account gets derived
	require.Equal(t, firstEvmAddress, reply.ActiveAccount.Address)

	accounts, err := h.svc.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	// the utxo book waits intact in its cache
	reply, err = h.svc.SwitchNetwork(ctx, "bitcoin", domain.UtxoChainFamily)
	require.NoError(t, err)
	require.Equal(t, firstReceiveAddress, reply.ActiveAccount.Address)

	accounts, err = h.svc.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// the connection of the abandoned evm network was released
	require.True(t, h.evm.closed)
}

func TestSwitchNetworkChainIdMismatchIsAtomic(t *testing.T) {
	h := newUnlockedHarness(t)

	h.evmErr = fmt.Errorf("%w: got %d, expected %d", evm.ErrChainIdMismatch, 5, 1)
	_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
	require.ErrorIs(t, err, domain.ErrWrongNetworkChainId)

	// nothing moved
	active, err := h.svc.GetActiveNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, "bitcoin", active.Name)
	account, err := h.svc.GetActiveAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, firstReceiveAddress, account.Address)

	// the same switch goes through once the node behaves
	h.evmErr = nil
	reply, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
	require.NoError(t, err)
	require.Equal(t, firstEvmAddress, reply.ActiveAccount.Address)
}

func TestAddNetwork(t *testing.T) {
	h := newUnlockedHarness(t)

	_, err := h.svc.AddNetwork(ctx, nil)
	require.ErrorIs(t, err, domain.ErrInvalidNetwork)
	_, err = h.svc.AddNetwork(ctx, &domain.Network{
		Name: "polygon", ChainFamily: domain.EvmChainFamily,
	})
	require.ErrorIs(t, err, domain.ErrInvalidNetwork)
	_, err = h.svc.AddNetwork(ctx, &domain.Network{
		Name: "mutinynet", ChainFamily: domain.UtxoChainFamily,
	})
	require.ErrorIs(t, err, domain.ErrInvalidNetwork)

	added, err := h.svc.AddNetwork(ctx, &domain.Network{
		Name:        "polygon",
		ChainFamily: domain.EvmChainFamily,
		Slip44:      966,
		Currency:    "POL",
		URL:         "https://polygon.example.org",
		ChainId:     137,
	})
	require.NoError(t, err)
	require.Equal(t, "polygon", added.Name)

	networks, err := h.svc.GetNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 4)

	reply, err := h.svc.SwitchNetwork(ctx, "polygon", domain.EvmChainFamily)
	require.NoError(t, err)
	require.Equal(t, uint64(137), reply.Network.ChainId)
}

func TestRemoveNetwork(t *testing.T) {
	h := newUnlockedHarness(t)

	err := h.svc.RemoveNetwork(ctx, domain.UtxoChainFamily, "lightcoin")
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)

	err = h.svc.RemoveNetwork(ctx, domain.UtxoChainFamily, "bitcoin")
	require.ErrorIs(t, err, domain.ErrRemoveActiveNetwork)

	require.NoError(t, h.svc.RemoveNetwork(ctx, domain.UtxoChainFamily, "testnet"))
	networks, err := h.svc.GetNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 2)

	_, err = h.svc.SwitchNetwork(ctx, "testnet", domain.UtxoChainFamily)
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)
}

func TestNetworkCatalogSurvivesRestart(t *testing.T) {
	h := newUnlockedHarness(t)

	_, err := h.svc.AddNetwork(ctx, &domain.Network{
		Name:        "polygon",
		ChainFamily: domain.EvmChainFamily,
		Slip44:      966,
		Currency:    "POL",
		URL:         "https://polygon.example.org",
		ChainId:     137,
	})
	require.NoError(t, err)
	_, err = h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
	require.NoError(t, err)

	h.rebuild(t)
	_, err = h.svc.Unlock(ctx, testPassword)
	require.NoError(t, err)

	active, err := h.svc.GetActiveNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, "ethereum", active.Name)

	networks, err := h.svc.GetNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 4)

	account, err := h.svc.GetActiveAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, firstEvmAddress, account.Address)
}
