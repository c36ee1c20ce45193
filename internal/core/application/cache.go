package application

import (
	"context"
	"encoding/json"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// cacheKeyForFamily returns the storage key of the encrypted account book of
// the given chain family.
func cacheKeyForFamily(family domain.ChainFamily) string {
	if family == domain.EvmChainFamily {
		return domain.EthAccountsCacheKey
	}
	return domain.UtxoAccountsCacheKey
}

// syncAccountsToCache persists the in-memory account book as the cache of
// the given family, encrypted under the session password.
func (s *walletStore) syncAccountsToCache(
	ctx context.Context, family domain.ChainFamily,
) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	return s.writeAccountsCache(ctx, family, s.sessionKey())
}

// writeAccountsCache persists the in-memory account book as the cache of the
// given family, encrypted under an explicit key. Used directly during a
// password change, when the session still carries the old key.
func (s *walletStore) writeAccountsCache(
	ctx context.Context, family domain.ChainFamily, key []byte,
) error {
	buf, err := json.Marshal(s.state.Accounts)
	if err != nil {
		return err
	}
	encrypted, err := wallet.EncryptWithKey(string(buf), key)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, cacheKeyForFamily(family), []byte(encrypted))
}

// loadAccountsFromCache replaces the in-memory account book with the cached
// one of the given family. A missing cache yields an empty book.
func (s *walletStore) loadAccountsFromCache(
	ctx context.Context, family domain.ChainFamily,
) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	value, found, err := s.store.Get(ctx, cacheKeyForFamily(family))
	if err != nil {
		return err
	}
	if !found {
		s.state.Accounts = make(map[domain.AccountType]map[int]*domain.Account)
		return nil
	}

	decrypted, err := wallet.DecryptWithKey(string(value), s.sessionKey())
	if err != nil {
		return err
	}
	accounts := make(map[domain.AccountType]map[int]*domain.Account)
	if err := json.Unmarshal([]byte(decrypted), &accounts); err != nil {
		return err
	}
	s.state.Accounts = accounts
	return nil
}

// reencryptCache rewrites the stored cache of the given family under a new
// session password, re-encrypting the key material of every account in it.
// The family currently loaded in memory must be synced separately, its book
// is the source of truth.
func (s *walletStore) reencryptCache(
	ctx context.Context, family domain.ChainFamily, oldKey, newKey []byte,
) error {
	value, found, err := s.store.Get(ctx, cacheKeyForFamily(family))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	decrypted, err := wallet.DecryptWithKey(string(value), oldKey)
	if err != nil {
		return err
	}
	accounts := make(map[domain.AccountType]map[int]*domain.Account)
	if err := json.Unmarshal([]byte(decrypted), &accounts); err != nil {
		return err
	}
	for _, book := range accounts {
		for _, account := range book {
			if err := reencryptAccountKey(account, oldKey, newKey); err != nil {
				return err
			}
		}
	}

	buf, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	encrypted, err := wallet.EncryptWithKey(string(buf), newKey)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, cacheKeyForFamily(family), []byte(encrypted))
}

// reencryptAccountKey swaps the session password protecting the account key
// material. Hardware accounts carry none and pass through untouched.
func reencryptAccountKey(account *domain.Account, oldKey, newKey []byte) error {
	if len(account.EncryptedXprv) <= 0 {
		return nil
	}
	xprv, err := wallet.DecryptWithKey(account.EncryptedXprv, oldKey)
	if err != nil {
		return err
	}
	encrypted, err := wallet.EncryptWithKey(xprv, newKey)
	if err != nil {
		return err
	}
	account.EncryptedXprv = encrypted
	return nil
}
