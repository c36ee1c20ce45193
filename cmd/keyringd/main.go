package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/config"
	"github.com/keyring-labs/keyringd/internal/core/application"
	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/internal/infrastructure/hardware"
	"github.com/keyring-labs/keyringd/internal/infrastructure/storage/badgerdb"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/explorer/esplora"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	activeNetwork, err := config.GetNetwork()
	if err != nil {
		log.WithError(err).Fatal("invalid boot network")
	}

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	store, err := badgerdb.NewSecureStore(dbDir, nil)
	if err != nil {
		log.WithError(err).Fatal("error while opening the secure store")
	}
	defer store.Close()

	svc, err := application.NewKeyringService(
		context.Background(), application.NewKeyringServiceOpts{
			Store:             store,
			ChainQueryFactory: chainQueryFactory,
			EvmChainFactory:   evmChainFactory,
			HardwareSigners:   hardwareSigners(),
			ActiveNetwork:     activeNetwork,
			Networks:          config.GetNetworks(),
		},
	)
	if err != nil {
		log.WithError(err).Fatal("error while starting the keyring service")
	}

	log.Infof(
		"keyring daemon ready on network '%s' (%s), locked: %t",
		activeNetwork.Name, activeNetwork.ChainFamily,
		svc.IsLocked(context.Background()),
	)
	log.Infof("datadir: %s", config.GetDatadir())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	svc.Lock(context.Background())
	log.Debug("exiting")
}

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

// hardwareSigners returns the device adapters to register, decorated with
// the retry policy. Only the deterministic development device is wired here,
// a physical transport registers its adapters the same way.
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
