package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

var supportedFamilies = []domain.ChainFamily{
	domain.UtxoChainFamily, domain.EvmChainFamily,
}

// ChainQueryFactory builds the chain query service for a UTXO network given
// its explorer endpoint.
type ChainQueryFactory func(endpoint string) (ports.ChainQuery, error)

// EvmChainFactory dials the RPC node of an EVM network and asserts its
// advertised chain id matches the expected one.
type EvmChainFactory func(
	ctx context.Context, rpcURL string, chainID uint64,
) (ports.EvmChain, error)

// walletStore is the shared state of the keyring services. All services hold
// the same instance and serialize access through its lock: read operations
// take it in read mode, multi-step mutations like a network switch hold it
// in write mode for their whole critical section. Helper methods assume the
// caller holds the lock unless stated otherwise.
type walletStore struct {
	store ports.SecureStore

	chainQueryFactory ChainQueryFactory
	evmChainFactory   EvmChainFactory
	hardwareSigners   map[domain.AccountType]ports.HardwareSigner

	lock     *sync.RWMutex
	state    *domain.WalletState
	secrets  *domain.SessionSecrets
	hdWallet *wallet.Wallet

	chainQuery ports.ChainQuery
	evmChain   ports.EvmChain

	changeIndexes map[string]uint32
}

// persistedState is the non-secret part of the wallet state, stored in plain
// JSON under the "walletState" key. The account books are excluded, they
// only ever leave memory through the encrypted per-family caches.
type persistedState struct {
	ActiveAccountId   int                                               `json:"activeAccountId"`
	ActiveAccountType domain.AccountType                                `json:"activeAccountType"`
	ActiveNetwork     *domain.Network                                   `json:"activeNetwork"`
	Networks          map[domain.ChainFamily]map[string]*domain.Network `json:"networks"`
}

func newWalletStore(
	ctx context.Context,
	store ports.SecureStore,
	chainQueryFactory ChainQueryFactory,
	evmChainFactory EvmChainFactory,
	hardwareSigners map[domain.AccountType]ports.HardwareSigner,
	activeNetwork *domain.Network,
	networks []*domain.Network,
) (*walletStore, error) {
	s := &walletStore{
		store:             store,
		chainQueryFactory: chainQueryFactory,
		evmChainFactory:   evmChainFactory,
		hardwareSigners:   hardwareSigners,
		lock:              &sync.RWMutex{},
		secrets:           &domain.SessionSecrets{},
		changeIndexes:     make(map[string]uint32),
	}

	persisted, err := s.loadWalletState(ctx)
	if err != nil {
		return nil, err
	}
	if persisted != nil {
		s.state = &domain.WalletState{
			Accounts:          make(map[domain.AccountType]map[int]*domain.Account),
			ActiveAccountId:   persisted.ActiveAccountId,
			ActiveAccountType: persisted.ActiveAccountType,
			ActiveNetwork:     persisted.ActiveNetwork,
			Networks:          persisted.Networks,
		}
	} else {
		s.state = domain.NewWalletState(activeNetwork, networks)
		if err := s.persistWalletState(ctx); err != nil {
			return nil, err
		}
	}
	if s.state.ActiveNetwork == nil {
		return nil, domain.ErrNetworkNotFound
	}

	return s, nil
}

func (s *walletStore) loadWalletState(ctx context.Context) (*persistedState, error) {
	value, found, err := s.store.Get(ctx, domain.WalletStateKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	state := &persistedState{}
	if err := json.Unmarshal(value, state); err != nil {
		return nil, fmt.Errorf("malformed wallet state record: %v", err)
	}
	return state, nil
}

func (s *walletStore) persistWalletState(ctx context.Context) error {
	buf, err := json.Marshal(persistedState{
		ActiveAccountId:   s.state.ActiveAccountId,
		ActiveAccountType: s.state.ActiveAccountType,
		ActiveNetwork:     s.state.ActiveNetwork,
		Networks:          s.state.Networks,
	})
	if err != nil {
		return err
	}
	return s.store.Set(ctx, domain.WalletStateKey, buf)
}

// hardwareSignerForType returns the device adapter registered for the given
// hardware account type.
func (s *walletStore) hardwareSignerForType(
	accountType domain.AccountType,
) (ports.HardwareSigner, error) {
	signer, ok := s.hardwareSigners[accountType]
	if !ok || signer == nil {
		return nil, ErrHardwareSignerNotAvailable
	}
	return signer, nil
}

// verifyPassword checks the given password against the persisted
// verification record.
func (s *walletStore) verifyPassword(ctx context.Context, password string) error {
	value, found, err := s.store.Get(ctx, domain.VaultKeysKey)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrVaultNotInitialized
	}
	keys := &domain.VaultKeys{}
	if err := json.Unmarshal(value, keys); err != nil {
		return domain.ErrVaultCorrupted
	}
	if !keys.VerifyPassword(password) {
		return domain.ErrInvalidPassword
	}
	return nil
}

// isLocked is safe to call without holding the lock.
func (s *walletStore) isLocked() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return !s.secrets.IsSet()
}

func (s *walletStore) requireUnlocked() error {
	if !s.secrets.IsSet() {
		return domain.ErrWalletLocked
	}
	return nil
}

func (s *walletStore) activeFamily() domain.ChainFamily {
	return s.state.ActiveNetwork.ChainFamily
}

func (s *walletStore) sessionKey() []byte {
	return []byte(s.secrets.SessionPassword)
}

// setSession establishes the in-memory session: the mnemonic and seed are
// kept encrypted under the session password, so they are only ever plaintext
// for the duration of the operation using them.
func (s *walletStore) setSession(sessionPassword, mnemonic, seedHex string) error {
	encryptedMnemonic, err := wallet.EncryptWithKey(
		mnemonic, []byte(sessionPassword),
	)
	if err != nil {
		return err
	}
	encryptedSeed, err := wallet.EncryptWithKey(seedHex, []byte(sessionPassword))
	if err != nil {
		return err
	}
	s.secrets.SessionPassword = sessionPassword
	s.secrets.SessionMnemonic = encryptedMnemonic
	s.secrets.SessionMainMnemonic = encryptedMnemonic
	s.secrets.SessionSeed = encryptedSeed
	return nil
}

func (s *walletStore) sessionSeedHex() (string, error) {
	if err := s.requireUnlocked(); err != nil {
		return "", err
	}
	return wallet.DecryptWithKey(s.secrets.SessionSeed, s.sessionKey())
}

func (s *walletStore) sessionMnemonic() (string, error) {
	if err := s.requireUnlocked(); err != nil {
		return "", err
	}
	return wallet.DecryptWithKey(s.secrets.SessionMnemonic, s.sessionKey())
}

// buildHDWallet rebinds the UTXO signing engine to the active network from
// the session seed.
func (s *walletStore) buildHDWallet() error {
	seedHex, err := s.sessionSeedHex()
	if err != nil {
		return err
	}
	params, err := s.state.ActiveNetwork.WalletParams()
	if err != nil {
		return err
	}
	hdWallet, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
		SeedHex: seedHex,
		Params:  params,
	})
	if err != nil {
		return err
	}
	s.hdWallet = hdWallet
	return nil
}

// ensureChainQuery lazily connects the chain query service of the active
// UTXO network. Connections are established on first use so that offline
// operations never require a reachable explorer.
func (s *walletStore) ensureChainQuery() (ports.ChainQuery, error) {
	if s.chainQuery != nil {
		return s.chainQuery, nil
	}
	net := s.state.ActiveNetwork
	if net.ChainFamily != domain.UtxoChainFamily {
		return nil, domain.ErrChainFamilyMismatch
	}
	chainQuery, err := s.chainQueryFactory(net.ExplorerURL)
	if err != nil {
		return nil, err
	}
	s.chainQuery = chainQuery
	return chainQuery, nil
}

// ensureEvmChain lazily dials the RPC node of the active EVM network. The
// advertised chain id is asserted by the factory, a mismatch surfaces as
// ErrWrongNetworkChainId.
func (s *walletStore) ensureEvmChain(ctx context.Context) (ports.EvmChain, error) {
	if s.evmChain != nil {
		return s.evmChain, nil
	}
	net := s.state.ActiveNetwork
	if net.ChainFamily != domain.EvmChainFamily {
		return nil, domain.ErrChainFamilyMismatch
	}
	evmChain, err := s.evmChainFactory(ctx, net.URL, net.ChainId)
	if err != nil {
		if errors.Is(err, evm.ErrChainIdMismatch) {
			return nil, domain.ErrWrongNetworkChainId
		}
		return nil, err
	}
	s.evmChain = evmChain
	return evmChain, nil
}

// alternateParams returns the chain parameters of the network mirrored on
// the other side of the mainnet/testnet divide. Extended key version bytes
// are bound to that divide only, so the mirror is what a key exported on the
// paired network parses against.
func alternateParams(net *domain.Network) (*chaincfg.Params, error) {
	mirror := net.Clone()
	mirror.Testnet = !mirror.Testnet
	return mirror.WalletParams()
}

// freshChangeIndex returns the next unused change index of the given account
// and bumps the counter, so that consecutive builds in the same session get
// different change addresses.
func (s *walletStore) freshChangeIndex(account *domain.Account) uint32 {
	key := fmt.Sprintf("%s:%d", account.Type(), account.Id)
	index := s.changeIndexes[key]
	s.changeIndexes[key] = index + 1
	return index
}
