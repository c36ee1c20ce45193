package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// AccountService manages the account books: HD derivation, key imports,
// hardware pairing and the active account cursor.
type AccountService interface {
	AddNewAccount(ctx context.Context, label string) (*domain.Account, error)
	ImportAccount(
		ctx context.Context, secret, label string,
	) (*domain.Account, error)
	ImportHardwareAccount(
		ctx context.Context, kind SignerKind, accountIndex uint32, label string,
	) (*domain.Account, error)
	SetActiveAccount(
		ctx context.Context, accountType domain.AccountType, id int,
	) (*domain.Account, error)
	GetActiveAccount(ctx context.Context) (*domain.Account, error)
	GetAccounts(ctx context.Context) ([]*domain.Account, error)
	GetPrivateKeyByAccountId(
		ctx context.Context, accountType domain.AccountType, id int,
		password string,
	) (string, error)
	ValidateZprv(
		ctx context.Context, key, networkName string,
	) (*wallet.ExtendedKeyValidation, error)
}

type accountService struct {
	store *walletStore
}

func newAccountService(store *walletStore) *accountService {
	return &accountService{store}
}

func (a *accountService) AddNewAccount(
	ctx context.Context, label string,
) (*domain.Account, error) {
	a.store.lock.Lock()
	defer a.store.lock.Unlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}

	id := a.store.state.NextAccountId(domain.HDAccountType)
	account, err := a.store.deriveHDAccount(id, label)
	if err != nil {
		return nil, err
	}
	if err := a.store.state.AddAccount(account); err != nil {
		return nil, err
	}
	if err := a.store.state.SetActiveAccount(
		domain.HDAccountType, id,
	); err != nil {
		return nil, err
	}
	if err := a.store.syncAccountsToCache(
		ctx, a.store.activeFamily(),
	); err != nil {
		return nil, err
	}
	if err := a.store.persistWalletState(ctx); err != nil {
		return nil, err
	}

	log.Debugf("derived new hd account %d", id)
	return account.Sanitized(), nil
}

func (a *accountService) ImportAccount(
	ctx context.Context, secret, label string,
) (*domain.Account, error) {
	a.store.lock.Lock()
	defer a.store.lock.Unlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}

	secret = strings.TrimSpace(secret)
	id := a.store.state.NextAccountId(domain.ImportedAccountType)
	if len(label) <= 0 {
		label = fmt.Sprintf("Imported %d", id+1)
	}
	account := &domain.Account{Id: id, Label: label, IsImported: true}

	switch {
	case isExtendedKeySecret(secret):
		if a.store.activeFamily() != domain.UtxoChainFamily {
			return nil, domain.ErrChainFamilyMismatch
		}
		params, err := a.store.state.ActiveNetwork.WalletParams()
		if err != nil {
			return nil, err
		}
		// imports are strict: a key serialized for the other side of the
		// mainnet/testnet divide is refused, re-interpreting it only
		// happens on network switches for accounts already in the book
		validation := wallet.ValidateExtendedKey(wallet.ValidateExtendedKeyOpts{
			Key:    secret,
			Params: params,
		})
		if !validation.IsValid {
			return nil, fmt.Errorf(
				"%w: %s", domain.ErrInvalidKeyFormat, validation.Message,
			)
		}
		address, err := wallet.AddressFromExtendedKey(
			validation.Node, wallet.ExternalBranch, 0, params,
		)
		if err != nil {
			return nil, err
		}
		xpub, err := validation.Node.Neuter()
		if err != nil {
			return nil, err
		}
		account.Address = address
		account.Xpub = xpub.String()
	case isEvmKeySecret(secret):
		if a.store.activeFamily() != domain.EvmChainFamily {
			return nil, domain.ErrChainFamilyMismatch
		}
		evmAccount, err := evm.NewAccountFromPrivateKey(secret)
		if err != nil {
			return nil, domain.ErrInvalidKeyFormat
		}
		account.Address = evmAccount.Address()
		account.Xpub = evmAccount.PublicKey()
	default:
		return nil, domain.ErrInvalidKeyFormat
	}

	encryptedXprv, err := wallet.EncryptWithKey(secret, a.store.sessionKey())
	if err != nil {
		return nil, err
	}
	account.EncryptedXprv = encryptedXprv

	if err := a.store.state.AddAccount(account); err != nil {
		return nil, err
	}
	if err := a.store.state.SetActiveAccount(
		domain.ImportedAccountType, id,
	); err != nil {
		return nil, err
	}
	if err := a.store.syncAccountsToCache(
		ctx, a.store.activeFamily(),
	); err != nil {
		return nil, err
	}
	if err := a.store.persistWalletState(ctx); err != nil {
		return nil, err
	}

	log.Debugf("imported account %d", id)
	return account.Sanitized(), nil
}

func (a *accountService) ImportHardwareAccount(
	ctx context.Context, kind SignerKind, accountIndex uint32, label string,
) (*domain.Account, error) {
	a.store.lock.Lock()
	defer a.store.lock.Unlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}

	var accountType domain.AccountType
	switch kind {
	case TrezorSignerKind:
		accountType = domain.TrezorAccountType
	case LedgerSignerKind:
		accountType = domain.LedgerAccountType
	default:
		return nil, ErrNotHardwareKind
	}
	signer, err := a.store.hardwareSignerForType(accountType)
	if err != nil {
		return nil, err
	}
	if !signer.IsConnected() {
		if err := signer.Connect(ctx); err != nil {
			return nil, err
		}
	}

	id := a.store.state.NextAccountId(accountType)
	if len(label) <= 0 {
		label = fmt.Sprintf("%s %d", kind, id+1)
	}
	account := &domain.Account{
		Id:       id,
		Label:    label,
		IsTrezor: kind == TrezorSignerKind,
		IsLedger: kind == LedgerSignerKind,
	}

	net := a.store.state.ActiveNetwork
	switch a.store.activeFamily() {
	case domain.EvmChainFamily:
		path := fmt.Sprintf("m/44'/60'/0'/0/%d", accountIndex)
		address, err := signer.GetAddress(ctx, path)
		if err != nil {
			return nil, err
		}
		reply, err := signer.GetPublicKey(ctx, path)
		if err != nil {
			return nil, err
		}
		account.Address = address
		account.Xpub = reply.PublicKey
		account.DerivationPath = path
	default:
		params, err := net.WalletParams()
		if err != nil {
			return nil, err
		}
		path := fmt.Sprintf("m/84'/%d'/%d'", net.Slip44, accountIndex)
		reply, err := signer.GetPublicKey(ctx, path)
		if err != nil {
			return nil, err
		}
		xpub, err := accountXpubFromDevice(reply, accountIndex, params)
		if err != nil {
			return nil, err
		}
		address, err := wallet.AddressFromExtendedKey(
			xpub, wallet.ExternalBranch, 0, params,
		)
		if err != nil {
			return nil, err
		}
		account.Address = address
		account.Xpub = xpub.String()
		account.DerivationPath = path
	}

	if err := a.store.state.AddAccount(account); err != nil {
		return nil, err
	}
	if err := a.store.state.SetActiveAccount(accountType, id); err != nil {
		return nil, err
	}
	if err := a.store.syncAccountsToCache(
		ctx, a.store.activeFamily(),
	); err != nil {
		return nil, err
	}
	if err := a.store.persistWalletState(ctx); err != nil {
		return nil, err
	}

	log.Debugf("paired %s account %d", kind, id)
	return account.Sanitized(), nil
}

func (a *accountService) SetActiveAccount(
	ctx context.Context, accountType domain.AccountType, id int,
) (*domain.Account, error) {
	a.store.lock.Lock()
	defer a.store.lock.Unlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}
	if err := a.store.state.SetActiveAccount(accountType, id); err != nil {
		return nil, err
	}
	if err := a.store.persistWalletState(ctx); err != nil {
		return nil, err
	}
	account, err := a.store.state.ActiveAccount()
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

func (a *accountService) GetActiveAccount(
	ctx context.Context,
) (*domain.Account, error) {
	a.store.lock.RLock()
	defer a.store.lock.RUnlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}
	account, err := a.store.state.ActiveAccount()
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

func (a *accountService) GetAccounts(
	ctx context.Context,
) ([]*domain.Account, error) {
	a.store.lock.RLock()
	defer a.store.lock.RUnlock()

	if err := a.store.requireUnlocked(); err != nil {
		return nil, err
	}
	accounts := a.store.state.AllAccounts()
	sanitized := make([]*domain.Account, 0, len(accounts))
	for _, account := range accounts {
		sanitized = append(sanitized, account.Sanitized())
	}
	return sanitized, nil
}

func (a *accountService) GetPrivateKeyByAccountId(
	ctx context.Context, accountType domain.AccountType, id int,
	password string,
) (string, error) {
	a.store.lock.RLock()
	defer a.store.lock.RUnlock()

	if err := a.store.requireUnlocked(); err != nil {
		return "", err
	}
	if err := a.store.verifyPassword(ctx, password); err != nil {
		return "", err
	}

	account, err := a.store.state.GetAccount(accountType, id)
	if err != nil {
		return "", err
	}
	if account.IsHardware() {
		return "", domain.ErrHardwareAccountHasNoKey
	}
	return wallet.DecryptWithKey(account.EncryptedXprv, a.store.sessionKey())
}

func (a *accountService) ValidateZprv(
	ctx context.Context, key, networkName string,
) (*wallet.ExtendedKeyValidation, error) {
	a.store.lock.RLock()
	defer a.store.lock.RUnlock()

	net := a.store.state.ActiveNetwork
	if len(networkName) > 0 {
		var err error
		net, err = a.store.state.NetworkByName(
			domain.UtxoChainFamily, networkName,
		)
		if err != nil {
			return nil, err
		}
	}
	params, err := net.WalletParams()
	if err != nil {
		return nil, err
	}
	validation := wallet.ValidateExtendedKey(wallet.ValidateExtendedKeyOpts{
		Key:    key,
		Params: params,
	})
	return &validation, nil
}

// deriveHDAccount derives the HD account with the given id on the active
// network. UTXO accounts own a whole BIP84 subtree, EVM ones are single key
// pairs at the standard BIP44 path with the id as address index.
func (s *walletStore) deriveHDAccount(
	id int, label string,
) (*domain.Account, error) {
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	if len(label) <= 0 {
		label = fmt.Sprintf("Account %d", id+1)
	}

	var address, xpub, xprv string
	switch s.activeFamily() {
	case domain.EvmChainFamily:
		seedHex, err := s.sessionSeedHex()
		if err != nil {
			return nil, err
		}
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, err
		}
		account, err := evm.DeriveAccount(evm.DeriveAccountOpts{
			Seed:         seed,
			AddressIndex: uint32(id),
		})
		if err != nil {
			return nil, err
		}
		address = account.Address()
		xpub = account.PublicKey()
		xprv = account.PrivateKeyHex()
	default:
		if s.hdWallet == nil {
			if err := s.buildHDWallet(); err != nil {
				return nil, err
			}
		}
		var err error
		if xpub, err = s.hdWallet.ExtendedPublicKey(wallet.ExtendedKeyOpts{
			Account: uint32(id),
		}); err != nil {
			return nil, err
		}
		if xprv, err = s.hdWallet.ExtendedPrivateKey(wallet.ExtendedKeyOpts{
			Account: uint32(id),
		}); err != nil {
			return nil, err
		}
		if address, err = s.hdWallet.DeriveReceiveAddress(wallet.DeriveAddressOpts{
			Account: uint32(id),
		}); err != nil {
			return nil, err
		}
	}

	encryptedXprv, err := wallet.EncryptWithKey(xprv, s.sessionKey())
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		Id:            id,
		Label:         label,
		Address:       address,
		Xpub:          xpub,
		EncryptedXprv: encryptedXprv,
	}, nil
}

// initActiveAccount makes sure the active cursor points at an existing
// account, deriving the first HD account when the book is empty.
func (s *walletStore) initActiveAccount(ctx context.Context) error {
	if _, err := s.state.ActiveAccount(); err == nil {
		return nil
	}
	if len(s.state.AllAccounts()) == 0 {
		account, err := s.deriveHDAccount(0, "")
		if err != nil {
			return err
		}
		if err := s.state.AddAccount(account); err != nil {
			return err
		}
		if err := s.syncAccountsToCache(ctx, s.activeFamily()); err != nil {
			return err
		}
	}
	first := s.state.AllAccounts()[0]
	if err := s.state.SetActiveAccount(first.Type(), first.Id); err != nil {
		return err
	}
	return s.persistWalletState(ctx)
}

// accountXpubFromDevice assembles the serialized account extended public key
// from the raw public key and chain code exported by a hardware device.
func accountXpubFromDevice(
	reply *ports.PublicKeyReply, accountIndex uint32, params *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	pubkey, err := hex.DecodeString(reply.PublicKey)
	if err != nil {
		return nil, err
	}
	chainCode, err := hex.DecodeString(reply.ChainCode)
	if err != nil {
		return nil, err
	}
	// account nodes sit at depth 3 (m/84'/slip44'/account'). The parent
	// fingerprint is not exported by every device, zero is accepted by all
	// consumers of the xpub.
	return hdkeychain.NewExtendedKey(
		params.HDPublicKeyID[:], pubkey, chainCode, []byte{0, 0, 0, 0},
		3, hdkeychain.HardenedKeyStart+accountIndex, false,
	), nil
}

// isExtendedKeySecret reports whether the secret looks like a serialized
// account extended private key. Legacy prefixes are included so that they
// reach the validator and fail with the right message.
func isExtendedKeySecret(secret string) bool {
	for _, prefix := range []string{
		wallet.MainnetExtendedKeyPrefix, wallet.TestnetExtendedKeyPrefix,
		wallet.LegacyMainnetExtendedKeyPrefix, wallet.LegacyTestnetExtendedKeyPrefix,
	} {
		if strings.HasPrefix(secret, prefix) {
			return true
		}
	}
	return false
}

// isEvmKeySecret reports whether the secret looks like a raw 32 byte EVM
// private key in hex, with an optional 0x prefix.
func isEvmKeySecret(secret string) bool {
	keyHex := strings.TrimPrefix(secret, "0x")
	if len(keyHex) != 64 {
		return false
	}
	_, err := hex.DecodeString(keyHex)
	return err == nil
}
