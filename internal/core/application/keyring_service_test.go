package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyring-labs/keyringd/internal/core/application"
	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/internal/infrastructure/storage/inmemory"
)

func TestNewKeyringService(t *testing.T) {
	chainQueryFactory := func(string) (ports.ChainQuery, error) {
		return &mockChainQuery{}, nil
	}
	evmChainFactory := func(
		context.Context, string, uint64,
	) (ports.EvmChain, error) {
		return &mockEvmChain{}, nil
	}

	fixtures := []application.NewKeyringServiceOpts{
		{
			ChainQueryFactory: chainQueryFactory,
			EvmChainFactory:   evmChainFactory,
			ActiveNetwork:     bitcoinNetwork(),
		},
		{
			Store:           inmemory.NewSecureStore(),
			EvmChainFactory: evmChainFactory,
			ActiveNetwork:   bitcoinNetwork(),
		},
		{
			Store:             inmemory.NewSecureStore(),
			ChainQueryFactory: chainQueryFactory,
			ActiveNetwork:     bitcoinNetwork(),
		},
		{
			Store:             inmemory.NewSecureStore(),
			ChainQueryFactory: chainQueryFactory,
			EvmChainFactory:   evmChainFactory,
		},
	}
	for _, opts := range fixtures {
		_, err := application.NewKeyringService(ctx, opts)
		require.Error(t, err)
	}

	svc, err := application.NewKeyringService(ctx, application.NewKeyringServiceOpts{
		Store:             inmemory.NewSecureStore(),
		ChainQueryFactory: chainQueryFactory,
		EvmChainFactory:   evmChainFactory,
		ActiveNetwork:     bitcoinNetwork(),
		Networks:          testNetworks(),
	})
	require.NoError(t, err)
	require.True(t, svc.IsLocked(ctx))
}

func TestTransferSession(t *testing.T) {
	t.Run("handoff to a replacement instance", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.AddNewAccount(ctx, "savings")
		require.NoError(t, err)

		// the replacement runs over the same store, like a daemon upgraded
		// in place
		replacement := &testHarness{
			secure: h.secure,
			chain:  h.chain,
			evm:    h.evm,
		}
		replacement.rebuild(t)
		require.True(t, replacement.svc.IsLocked(ctx))

		require.NoError(t, h.svc.TransferSession(ctx, replacement.svc))

		require.True(t, h.svc.IsLocked(ctx))
		require.False(t, replacement.svc.IsLocked(ctx))

		_, err = h.svc.GetActiveAccount(ctx)
		require.ErrorIs(t, err, domain.ErrWalletLocked)

		accounts, err := replacement.svc.GetAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)

		account, err := replacement.svc.GetActiveAccount(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, account.Address)

		seed, err := replacement.svc.GetSeed(ctx, testPassword)
		require.NoError(t, err)
		require.Equal(t, testMnemonic, seed)
	})

	t.Run("transfer to itself is a no-op", func(t *testing.T) {
		h := newUnlockedHarness(t)

		require.NoError(t, h.svc.TransferSession(ctx, h.svc))
		require.False(t, h.svc.IsLocked(ctx))
	})

	t.Run("locked source", func(t *testing.T) {
		h := newUnlockedHarness(t)
		h.svc.Lock(ctx)
		target := newHarness(t, nil)

		err := h.svc.TransferSession(ctx, target.svc)
		require.ErrorIs(t, err, domain.ErrWalletLocked)
	})

	t.Run("foreign implementation", func(t *testing.T) {
		h := newUnlockedHarness(t)
		target := newHarness(t, nil)

		err := h.svc.TransferSession(ctx, wrappedKeyring{target.svc})
		require.EqualError(t, err, "target service does not support session transfer")
		require.False(t, h.svc.IsLocked(ctx))
	})
}

type wrappedKeyring struct {
	application.KeyringService
}
