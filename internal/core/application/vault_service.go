package application

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// VaultService manages the vault records and the session lifecycle: password
// verification, session password derivation, lock and unlock.
type VaultService interface {
	GenSeed(ctx context.Context) (string, error)
	CreateVault(ctx context.Context, mnemonic, password string) error
	SetPassword(ctx context.Context, prevPassword, newPassword string) error
	Unlock(ctx context.Context, password string) (*UnlockReply, error)
	Lock(ctx context.Context)
	IsLocked(ctx context.Context) bool
	GetSeed(ctx context.Context, password string) (string, error)
	Forget(ctx context.Context, password string) error
}

type vaultService struct {
	store *walletStore
}

func newVaultService(store *walletStore) *vaultService {
	return &vaultService{store}
}

func (v *vaultService) GenSeed(ctx context.Context) (string, error) {
	return wallet.NewMnemonic(wallet.NewMnemonicOpts{})
}

func (v *vaultService) IsLocked(ctx context.Context) bool {
	return v.store.isLocked()
}

func (v *vaultService) CreateVault(
	ctx context.Context, mnemonic, password string,
) error {
	if len(password) <= 0 {
		return domain.ErrInvalidPassword
	}

	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	if _, found, err := v.vault(ctx); err != nil {
		return err
	} else if found {
		return domain.ErrVaultAlreadyInitialized
	}
	if !wallet.IsMnemonicValid(mnemonic) {
		return wallet.ErrInvalidMnemonic
	}

	// the verification record may predate the vault when the password was
	// set first
	keys, found, err := v.vaultKeys(ctx)
	if err != nil {
		return err
	}
	if found {
		if !keys.VerifyPassword(password) {
			return domain.ErrInvalidPassword
		}
		keys.EnsureSessionSalt()
	} else {
		keys, err = domain.NewVaultKeys(password)
		if err != nil {
			return err
		}
	}

	encryptedMnemonic, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  mnemonic,
		Passphrase: password,
	})
	if err != nil {
		return err
	}

	if err := v.saveVaultKeys(ctx, keys); err != nil {
		return err
	}
	if err := v.saveVault(ctx, &domain.Vault{
		EncryptedMnemonic: encryptedMnemonic,
	}); err != nil {
		return err
	}

	seedHex, err := seedHexFromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	if err := v.store.setSession(
		keys.SessionPasswordFor(password), mnemonic, seedHex,
	); err != nil {
		return err
	}
	if v.store.activeFamily() == domain.UtxoChainFamily {
		if err := v.store.buildHDWallet(); err != nil {
			return err
		}
	}
	if err := v.store.initActiveAccount(ctx); err != nil {
		return err
	}

	log.Info("vault initialized and unlocked")
	return nil
}

func (v *vaultService) SetPassword(
	ctx context.Context, prevPassword, newPassword string,
) error {
	if len(newPassword) <= 0 {
		return domain.ErrInvalidPassword
	}

	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	keys, found, err := v.vaultKeys(ctx)
	if err != nil {
		return err
	}
	if !found {
		// first call just establishes the verification record
		keys, err := domain.NewVaultKeys(newPassword)
		if err != nil {
			return err
		}
		return v.saveVaultKeys(ctx, keys)
	}

	if !keys.VerifyPassword(prevPassword) {
		return domain.ErrInvalidPrevPassword
	}

	oldKeys := *keys
	oldSessionKey := []byte(keys.SessionPasswordFor(prevPassword))
	keys.ChangePassword(newPassword)
	newSessionKey := []byte(keys.SessionPasswordFor(newPassword))

	unlocked := v.store.secrets.IsSet()

	// everything that gets mutated is captured first, so that a failure in
	// the middle of the sequence can restore the exact previous state
	stateSnapshot := v.store.state.Snapshot()
	oldVault, vaultFound, err := v.vault(ctx)
	if err != nil {
		return err
	}
	oldCaches := make(map[string][]byte)
	for _, family := range supportedFamilies {
		value, found, err := v.store.store.Get(ctx, cacheKeyForFamily(family))
		if err != nil {
			return err
		}
		if found {
			oldCaches[cacheKeyForFamily(family)] = value
		}
	}
	rollback := func() {
		v.store.state = stateSnapshot
		if vaultFound {
			//nolint:errcheck
			v.saveVault(ctx, oldVault)
		}
		//nolint:errcheck
		v.saveVaultKeys(ctx, &oldKeys)
		for key, value := range oldCaches {
			//nolint:errcheck
			v.store.store.Set(ctx, key, value)
		}
	}

	var mnemonic, seedHex string
	if unlocked {
		if mnemonic, err = v.store.sessionMnemonic(); err != nil {
			return err
		}
		if seedHex, err = v.store.sessionSeedHex(); err != nil {
			return err
		}
	} else if vaultFound {
		if mnemonic, err = wallet.Decrypt(wallet.DecryptOpts{
			CypherText: oldVault.EncryptedMnemonic,
			Passphrase: prevPassword,
		}); err != nil {
			v.flagRecovery(ctx)
			return domain.ErrVaultCorrupted
		}
	}

	if vaultFound {
		encryptedMnemonic, err := wallet.Encrypt(wallet.EncryptOpts{
			PlainText:  mnemonic,
			Passphrase: newPassword,
		})
		if err != nil {
			return err
		}
		if err := v.saveVault(ctx, &domain.Vault{
			EncryptedMnemonic: encryptedMnemonic,
		}); err != nil {
			rollback()
			return err
		}
	}
	if err := v.saveVaultKeys(ctx, keys); err != nil {
		rollback()
		return err
	}

	// both family caches are re-keyed concurrently. The family loaded in
	// memory is re-encrypted from its books, the other from storage.
	g, gctx := errgroup.WithContext(ctx)
	activeFamily := v.store.activeFamily()
	for _, family := range supportedFamilies {
		if unlocked && family == activeFamily {
			continue
		}
		family := family
		g.Go(func() error {
			return v.store.reencryptCache(gctx, family, oldSessionKey, newSessionKey)
		})
	}
	if unlocked {
		g.Go(func() error {
			for _, account := range v.store.state.AllAccounts() {
				if err := reencryptAccountKey(
					account, oldSessionKey, newSessionKey,
				); err != nil {
					return err
				}
			}
			return v.store.writeAccountsCache(gctx, activeFamily, newSessionKey)
		})
	}
	if err := g.Wait(); err != nil {
		rollback()
		return err
	}

	if unlocked {
		if err := v.store.setSession(
			keys.SessionPasswordFor(newPassword), mnemonic, seedHex,
		); err != nil {
			rollback()
			return err
		}
	}

	log.Info("password updated")
	return nil
}

func (v *vaultService) Unlock(
	ctx context.Context, password string,
) (*UnlockReply, error) {
	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	keys, found, err := v.vaultKeys(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrVaultNotInitialized
	}
	if !keys.VerifyPassword(password) {
		return nil, domain.ErrInvalidPassword
	}
	// records persisted before session salts existed get one on the fly
	if keys.EnsureSessionSalt() {
		if err := v.saveVaultKeys(ctx, keys); err != nil {
			return nil, err
		}
	}
	sessionPassword := keys.SessionPasswordFor(password)

	if !v.store.secrets.IsSet() ||
		v.store.secrets.SessionPassword != sessionPassword {
		vault, found, err := v.vault(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, domain.ErrVaultNotInitialized
		}
		mnemonic, err := wallet.Decrypt(wallet.DecryptOpts{
			CypherText: vault.EncryptedMnemonic,
			Passphrase: password,
		})
		if err != nil || !wallet.IsMnemonicValid(mnemonic) {
			// the password verified against the hash, so a failing
			// decryption means the record itself is damaged
			v.flagRecovery(ctx)
			return nil, domain.ErrVaultCorrupted
		}
		seedHex, err := seedHexFromMnemonic(mnemonic)
		if err != nil {
			return nil, err
		}
		if err := v.store.setSession(
			sessionPassword, mnemonic, seedHex,
		); err != nil {
			return nil, err
		}
	}

	needsRecovery := v.consumeRecoveryFlag(ctx)

	if v.store.activeFamily() == domain.UtxoChainFamily {
		if err := v.store.buildHDWallet(); err != nil {
			v.store.secrets.Zero()
			return nil, err
		}
	}
	if err := v.store.loadAccountsFromCache(
		ctx, v.store.activeFamily(),
	); err != nil {
		log.WithError(err).Warn(
			"account cache could not be restored, a guided recovery is needed",
		)
		v.store.state.Accounts = make(map[domain.AccountType]map[int]*domain.Account)
		needsRecovery = true
	}
	if err := v.store.initActiveAccount(ctx); err != nil {
		return nil, err
	}

	log.Info("wallet unlocked")
	return &UnlockReply{NeedsRecovery: needsRecovery}, nil
}

func (v *vaultService) Lock(ctx context.Context) {
	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	v.store.secrets.Zero()
	v.store.hdWallet = nil
	v.store.state.Accounts = make(map[domain.AccountType]map[int]*domain.Account)
	log.Info("wallet locked")
}

func (v *vaultService) GetSeed(
	ctx context.Context, password string,
) (string, error) {
	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	keys, found, err := v.vaultKeys(ctx)
	if err != nil {
		return "", err
	}
	if !found {
		return "", domain.ErrVaultNotInitialized
	}
	if !keys.VerifyPassword(password) {
		return "", domain.ErrInvalidPassword
	}
	vault, found, err := v.vault(ctx)
	if err != nil {
		return "", err
	}
	if !found {
		return "", domain.ErrVaultNotInitialized
	}

	mnemonic, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: vault.EncryptedMnemonic,
		Passphrase: password,
	})
	if err != nil || !wallet.IsMnemonicValid(mnemonic) {
		v.flagRecovery(ctx)
		return "", domain.ErrVaultCorrupted
	}
	return mnemonic, nil
}

func (v *vaultService) Forget(ctx context.Context, password string) error {
	v.store.lock.Lock()
	defer v.store.lock.Unlock()

	keys, found, err := v.vaultKeys(ctx)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrVaultNotInitialized
	}
	if !keys.VerifyPassword(password) {
		return domain.ErrInvalidPassword
	}

	for _, key := range []string{
		domain.VaultKey, domain.VaultKeysKey, domain.EthAccountsCacheKey,
		domain.UtxoAccountsCacheKey, domain.Utf8ErrorKey,
	} {
		if err := v.store.store.Remove(ctx, key); err != nil {
			return err
		}
	}

	v.store.secrets.Zero()
	v.store.hdWallet = nil
	v.store.state.Accounts = make(map[domain.AccountType]map[int]*domain.Account)
	v.store.state.ActiveAccountId = 0
	v.store.state.ActiveAccountType = domain.HDAccountType
	if err := v.store.persistWalletState(ctx); err != nil {
		return err
	}

	log.Info("vault wiped")
	return nil
}

func (v *vaultService) vault(ctx context.Context) (*domain.Vault, bool, error) {
	value, found, err := v.store.store.Get(ctx, domain.VaultKey)
	if err != nil || !found {
		return nil, false, err
	}
	vault := &domain.Vault{}
	if err := json.Unmarshal(value, vault); err != nil {
		return nil, false, domain.ErrVaultCorrupted
	}
	return vault, true, nil
}

func (v *vaultService) saveVault(ctx context.Context, vault *domain.Vault) error {
	buf, err := json.Marshal(vault)
	if err != nil {
		return err
	}
	return v.store.store.Set(ctx, domain.VaultKey, buf)
}

func (v *vaultService) vaultKeys(
	ctx context.Context,
) (*domain.VaultKeys, bool, error) {
	value, found, err := v.store.store.Get(ctx, domain.VaultKeysKey)
	if err != nil || !found {
		return nil, false, err
	}
	keys := &domain.VaultKeys{}
	if err := json.Unmarshal(value, keys); err != nil {
		return nil, false, domain.ErrVaultCorrupted
	}
	return keys, true, nil
}

func (v *vaultService) saveVaultKeys(
	ctx context.Context, keys *domain.VaultKeys,
) error {
	buf, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return v.store.store.Set(ctx, domain.VaultKeysKey, buf)
}

// flagRecovery persists the marker telling the next unlock to start a
// guided recovery. Best effort, the unlock error is the primary signal.
func (v *vaultService) flagRecovery(ctx context.Context) {
	if err := v.store.store.Set(
		ctx, domain.Utf8ErrorKey, []byte(`{"hasUtf8Error":true}`),
	); err != nil {
		log.WithError(err).Warn("could not persist the recovery flag")
	}
}

// consumeRecoveryFlag reads and clears the recovery marker.
func (v *vaultService) consumeRecoveryFlag(ctx context.Context) bool {
	_, found, err := v.store.store.Get(ctx, domain.Utf8ErrorKey)
	if err != nil || !found {
		return false
	}
	if err := v.store.store.Remove(ctx, domain.Utf8ErrorKey); err != nil {
		log.WithError(err).Warn("could not clear the recovery flag")
	}
	return true
}

// seedHexFromMnemonic stretches the mnemonic into the wallet seed. The
// network params only affect key serialization, never the seed, so any set
// works here.
func seedHexFromMnemonic(mnemonic string) (string, error) {
	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		Params:   wallet.MainNetParams(),
	})
	if err != nil {
		return "", err
	}
	return w.SeedHex()
}
