package application

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// NetworkService manages the network catalog and the active network. A
// switch is atomic: either the keyring ends up fully bound to the target
// network or the previous state is restored byte for byte.
type NetworkService interface {
	SwitchNetwork(
		ctx context.Context, name string, family domain.ChainFamily,
	) (*SwitchNetworkReply, error)
	AddNetwork(ctx context.Context, net *domain.Network) (*domain.Network, error)
	RemoveNetwork(
		ctx context.Context, family domain.ChainFamily, name string,
	) error
	GetNetworks(ctx context.Context) ([]*domain.Network, error)
	GetActiveNetwork(ctx context.Context) (*domain.Network, error)
}

type networkService struct {
	store *walletStore
}

func newNetworkService(store *walletStore) *networkService {
	return &networkService{store}
}

// runtimeSnapshot captures everything a network switch mutates, so a failure
// at any step can put it all back.
type runtimeSnapshot struct {
	state      *domain.WalletState
	hdWallet   *wallet.Wallet
	chainQuery ports.ChainQuery
	evmChain   ports.EvmChain
}

func (n *networkService) SwitchNetwork(
	ctx context.Context, name string, family domain.ChainFamily,
) (*SwitchNetworkReply, error) {
	n.store.lock.Lock()
	defer n.store.lock.Unlock()

	if !family.IsSupported() {
		return nil, domain.ErrUnsupportedChain
	}
	net, err := n.store.state.NetworkByName(family, name)
	if err != nil {
		// a name that exists under the other family is a family mistake,
		// not a missing network
		other := domain.EvmChainFamily
		if family == domain.EvmChainFamily {
			other = domain.UtxoChainFamily
		}
		if _, otherErr := n.store.state.NetworkByName(other, name); otherErr == nil {
			return nil, domain.ErrChainFamilyMismatch
		}
		return nil, err
	}
	if err := n.store.requireUnlocked(); err != nil {
		return nil, err
	}

	current := n.store.state.ActiveNetwork
	if current.ChainFamily == net.ChainFamily && current.Name == net.Name {
		account, err := n.store.state.ActiveAccount()
		if err != nil {
			return nil, err
		}
		return &SwitchNetworkReply{
			Network:       net.Clone(),
			ActiveAccount: account.Sanitized(),
		}, nil
	}

	snapshot := &runtimeSnapshot{
		state:      n.store.state.Snapshot(),
		hdWallet:   n.store.hdWallet,
		chainQuery: n.store.chainQuery,
		evmChain:   n.store.evmChain,
	}
	restore := func() {
		if n.store.evmChain != nil && n.store.evmChain != snapshot.evmChain {
			n.store.evmChain.Close()
		}
		n.store.state = snapshot.state
		n.store.hdWallet = snapshot.hdWallet
		n.store.chainQuery = snapshot.chainQuery
		n.store.evmChain = snapshot.evmChain
		//nolint:errcheck
		n.store.persistWalletState(ctx)
	}

	// crossing the family boundary swaps the account books through their
	// encrypted caches
	familyChanged := current.ChainFamily != net.ChainFamily
	if familyChanged {
		if err := n.store.syncAccountsToCache(
			ctx, current.ChainFamily,
		); err != nil {
			restore()
			return nil, err
		}
		if err := n.store.loadAccountsFromCache(
			ctx, net.ChainFamily,
		); err != nil {
			restore()
			return nil, err
		}
	}

	switch net.ChainFamily {
	case domain.EvmChainFamily:
		// dialing eagerly validates the target before anything commits, a
		// node advertising the wrong chain id aborts the whole switch
		evmChain, err := n.store.evmChainFactory(ctx, net.URL, net.ChainId)
		if err != nil {
			restore()
			if errors.Is(err, evm.ErrChainIdMismatch) {
				return nil, domain.ErrWrongNetworkChainId
			}
			return nil, err
		}
		n.store.evmChain = evmChain
		n.store.chainQuery = nil
		n.store.hdWallet = nil
	default:
		if familyChanged || n.store.hdWallet == nil ||
			current.Identity() != net.Identity() {
			seedHex, err := n.store.sessionSeedHex()
			if err != nil {
				restore()
				return nil, err
			}
			params, err := net.WalletParams()
			if err != nil {
				restore()
				return nil, err
			}
			hdWallet, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
				SeedHex: seedHex,
				Params:  params,
			})
			if err != nil {
				restore()
				return nil, err
			}
			n.store.hdWallet = hdWallet
		}
		chainQuery, err := n.store.chainQueryFactory(net.ExplorerURL)
		if err != nil {
			restore()
			return nil, err
		}
		n.store.chainQuery = chainQuery

		if err := n.store.updateAddressFormats(net); err != nil {
			restore()
			return nil, err
		}
	}

	n.store.state.ActiveNetwork = net.Clone()

	if err := n.store.initActiveAccount(ctx); err != nil {
		restore()
		return nil, err
	}
	if err := n.store.syncAccountsToCache(ctx, net.ChainFamily); err != nil {
		restore()
		return nil, err
	}
	if err := n.store.persistWalletState(ctx); err != nil {
		restore()
		return nil, err
	}

	// the previous connections belong to a network that is no longer active
	if snapshot.evmChain != nil && snapshot.evmChain != n.store.evmChain {
		snapshot.evmChain.Close()
	}

	account, err := n.store.state.ActiveAccount()
	if err != nil {
		return nil, err
	}
	log.Infof("switched to network %s (%s)", net.Name, net.ChainFamily)
	return &SwitchNetworkReply{
		Network:       net.Clone(),
		ActiveAccount: account.Sanitized(),
	}, nil
}

func (n *networkService) AddNetwork(
	ctx context.Context, net *domain.Network,
) (*domain.Network, error) {
	if err := validateNetwork(net); err != nil {
		return nil, err
	}

	n.store.lock.Lock()
	defer n.store.lock.Unlock()

	n.store.state.AddNetwork(net.Clone())
	if err := n.store.persistWalletState(ctx); err != nil {
		return nil, err
	}
	return net.Clone(), nil
}

func (n *networkService) RemoveNetwork(
	ctx context.Context, family domain.ChainFamily, name string,
) error {
	n.store.lock.Lock()
	defer n.store.lock.Unlock()

	if err := n.store.state.RemoveNetwork(family, name); err != nil {
		return err
	}
	return n.store.persistWalletState(ctx)
}

func (n *networkService) GetNetworks(
	ctx context.Context,
) ([]*domain.Network, error) {
	n.store.lock.RLock()
	defer n.store.lock.RUnlock()

	networks := n.store.state.AllNetworks()
	cloned := make([]*domain.Network, 0, len(networks))
	for _, net := range networks {
		cloned = append(cloned, net.Clone())
	}
	return cloned, nil
}

func (n *networkService) GetActiveNetwork(
	ctx context.Context,
) (*domain.Network, error) {
	n.store.lock.RLock()
	defer n.store.lock.RUnlock()

	return n.store.state.ActiveNetwork.Clone(), nil
}

// updateAddressFormats re-encodes the address of every account in the book
// for the target UTXO network. Only the address changes, xpubs and encrypted
// keys keep the serialization they were created with.
func (s *walletStore) updateAddressFormats(net *domain.Network) error {
	params, err := net.WalletParams()
	if err != nil {
		return err
	}
	alternate, err := alternateParams(net)
	if err != nil {
		return err
	}

	for _, account := range s.state.AllAccounts() {
		switch {
		case account.Type() == domain.HDAccountType:
			address, err := s.hdWallet.DeriveReceiveAddress(wallet.DeriveAddressOpts{
				Account: uint32(account.Id),
			})
			if err != nil {
				return err
			}
			account.Address = address
		case account.IsHardware():
			address, err := wallet.AddressFromAccountXpub(account.Xpub, params)
			if err != nil {
				return err
			}
			account.Address = address
		default:
			// imported keys may be serialized for the paired network, the
			// parser falls back to it so the account survives the switch
			xprv, err := wallet.DecryptWithKey(
				account.EncryptedXprv, s.sessionKey(),
			)
			if err != nil {
				return err
			}
			node, err := wallet.ParseAccountExtendedKey(xprv, params, alternate)
			if err != nil {
				return err
			}
			address, err := wallet.AddressFromExtendedKey(
				node, wallet.ExternalBranch, 0, params,
			)
			if err != nil {
				return err
			}
			account.Address = address
		}
	}
	return nil
}

func validateNetwork(net *domain.Network) error {
	if net == nil || len(net.Name) <= 0 {
		return domain.ErrInvalidNetwork
	}
	if !net.ChainFamily.IsSupported() {
		return domain.ErrUnsupportedChain
	}
	switch net.ChainFamily {
	case domain.EvmChainFamily:
		if net.ChainId == 0 || len(net.URL) <= 0 {
			return domain.ErrInvalidNetwork
		}
	default:
		if len(net.Bech32HRP) <= 0 {
			return domain.ErrInvalidNetwork
		}
	}
	return nil
}
