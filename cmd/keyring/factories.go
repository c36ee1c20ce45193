package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/config"
	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/internal/infrastructure/hardware"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/explorer/esplora"
)

func chainQueryFactory(endpoint string) (ports.ChainQuery, error) {
	return esplora.NewService(
		endpoint, config.GetInt(config.ExplorerRequestTimeoutKey),
	)
}

func evmChainFactory(
	ctx context.Context, rpcURL string, chainID uint64,
) (ports.EvmChain, error) {
	return evm.NewProvider(ctx, evm.NewProviderOpts{
		RPCURL:          rpcURL,
		ExpectedChainID: chainID,
	})
}

func hardwareSigners() map[domain.AccountType]ports.HardwareSigner {
	mnemonic := config.GetString(config.DevDeviceMnemonicKey)
	if mnemonic == "" {
		return nil
	}

	device, err := hardware.NewSoftwareSigner(mnemonic)
	if err != nil {
		log.WithError(err).Fatal("error while seeding the dev signing device")
	}
	return map[domain.AccountType]ports.HardwareSigner{
		domain.TrezorAccountType: hardware.WithRetry(device, "trezor"),
		domain.LedgerAccountType: hardware.WithRetry(device, "ledger"),
	}
}
