package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
)

// KeyringService exposes the whole daemon surface: vault lifecycle, account
// book, network catalog and the transaction pipeline, plus the session
// handoff used when a running instance is replaced in place.
type KeyringService interface {
	VaultService
	AccountService
	NetworkService
	TransactionService

	// TransferSession hands the in-memory session over to target and locks
	// the receiver. The target must come from NewKeyringService.
	TransferSession(ctx context.Context, target KeyringService) error
}

// NewKeyringServiceOpts groups the dependencies of the keyring service.
// ActiveNetwork and Networks seed the catalog on first boot only, once a
// wallet state record exists the persisted catalog wins.
type NewKeyringServiceOpts struct {
	Store             ports.SecureStore
	ChainQueryFactory ChainQueryFactory
	EvmChainFactory   EvmChainFactory
	HardwareSigners   map[domain.AccountType]ports.HardwareSigner
	ActiveNetwork     *domain.Network
	Networks          []*domain.Network
}

func (o NewKeyringServiceOpts) validate() error {
	if o.Store == nil {
		return fmt.Errorf("missing secure store")
	}
	if o.ChainQueryFactory == nil {
		return fmt.Errorf("missing chain query factory")
	}
	if o.EvmChainFactory == nil {
		return fmt.Errorf("missing evm chain factory")
	}
	if o.ActiveNetwork == nil {
		return fmt.Errorf("missing active network")
	}
	return nil
}

type keyringService struct {
	*vaultService
	*accountService
	*networkService
	*transactionService

	store *walletStore
}

// NewKeyringService returns the composed keyring service backed by the given
// secure store.
func NewKeyringService(
	ctx context.Context, opts NewKeyringServiceOpts,
) (KeyringService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	store, err := newWalletStore(
		ctx, opts.Store, opts.ChainQueryFactory, opts.EvmChainFactory,
		opts.HardwareSigners, opts.ActiveNetwork, opts.Networks,
	)
	if err != nil {
		return nil, err
	}
	return &keyringService{
		vaultService:       newVaultService(store),
		accountService:     newAccountService(store),
		networkService:     newNetworkService(store),
		transactionService: newTransactionService(store),
		store:              store,
	}, nil
}

func (k *keyringService) TransferSession(
	ctx context.Context, target KeyringService,
) error {
	dest, ok := target.(*keyringService)
	if !ok {
		return fmt.Errorf("target service does not support session transfer")
	}
	if dest == k {
		return nil
	}

	k.store.lock.Lock()
	defer k.store.lock.Unlock()
	if err := k.store.requireUnlocked(); err != nil {
		return err
	}

	dest.store.lock.Lock()
	defer dest.store.lock.Unlock()

	mnemonic, err := k.store.sessionMnemonic()
	if err != nil {
		return err
	}
	seedHex, err := k.store.sessionSeedHex()
	if err != nil {
		return err
	}
	if err := dest.store.setSession(
		k.store.secrets.SessionPassword, mnemonic, seedHex,
	); err != nil {
		return err
	}
	if dest.store.activeFamily() == domain.UtxoChainFamily {
		if err := dest.store.buildHDWallet(); err != nil {
			dest.store.secrets.Zero()
			return err
		}
	}
	if err := dest.store.loadAccountsFromCache(
		ctx, dest.store.activeFamily(),
	); err != nil {
		log.WithError(err).Warn(
			"could not load account book after session transfer",
		)
		dest.store.state.Accounts = make(
			map[domain.AccountType]map[int]*domain.Account,
		)
	}
	if err := dest.store.initActiveAccount(ctx); err != nil {
		dest.store.secrets.Zero()
		dest.store.hdWallet = nil
		return err
	}

	k.store.secrets.Zero()
	k.store.hdWallet = nil
	k.store.state.Accounts = make(map[domain.AccountType]map[int]*domain.Account)
	log.Info("session transferred, source locked")
	return nil
}
