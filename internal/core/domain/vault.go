package domain

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	"github.com/thanhpk/randstr"
)

const saltByteLen = 32

// Vault is the persisted record holding the wallet mnemonic encrypted under
// the user password. Stored under the "vault" key.
type Vault struct {
	EncryptedMnemonic string `json:"encryptedMnemonic"`
}

// VaultKeys is the persisted password verification record, stored under the
// "vault-keys" key. Hash is the hex HMAC-SHA512 of the user password keyed
// with Salt. CurrentSessionSalt keys the derivation of the session password
// and rotates on every password change.
type VaultKeys struct {
	Hash               string `json:"hash"`
	Salt               string `json:"salt"`
	CurrentSessionSalt string `json:"currentSessionSalt,omitempty"`
}

// NewVaultKeys returns the verification record for the given password with
// fresh random salts.
func NewVaultKeys(password string) (*VaultKeys, error) {
	if len(password) <= 0 {
		return nil, ErrInvalidPassword
	}
	salt := randstr.Hex(saltByteLen)
	return &VaultKeys{
		Hash:               HashPassword(salt, password),
		Salt:               salt,
		CurrentSessionSalt: randstr.Hex(saltByteLen),
	}, nil
}

// VerifyPassword reports whether the password matches the stored hash. The
// comparison leaks no information about which of salt or password differed.
func (k *VaultKeys) VerifyPassword(password string) bool {
	return hmac.Equal(
		[]byte(HashPassword(k.Salt, password)), []byte(k.Hash),
	)
}

// SessionPasswordFor derives the session password for the given user
// password from the current session salt.
func (k *VaultKeys) SessionPasswordFor(password string) string {
	return HashPassword(k.CurrentSessionSalt, password)
}

// ChangePassword re-keys the record for the new password, rotating both
// salts.
func (k *VaultKeys) ChangePassword(password string) {
	k.Salt = randstr.Hex(saltByteLen)
	k.Hash = HashPassword(k.Salt, password)
	k.CurrentSessionSalt = randstr.Hex(saltByteLen)
}

// EnsureSessionSalt backfills the session salt on records persisted before
// it existed. Returns whether the record was modified.
func (k *VaultKeys) EnsureSessionSalt() bool {
	if len(k.CurrentSessionSalt) > 0 {
		return false
	}
	k.CurrentSessionSalt = randstr.Hex(saltByteLen)
	return true
}

// HashPassword returns the hex encoded HMAC-SHA512 of the password keyed
// with the salt.
func HashPassword(salt, password string) string {
	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// SessionSecrets holds the decrypted session material of an unlocked wallet.
// Never persisted. The mnemonic and seed fields are themselves ciphertexts
// under the session password, so a memory dump of a locked field set reveals
// nothing.
type SessionSecrets struct {
	SessionPassword     string
	SessionMnemonic     string
	SessionMainMnemonic string
	SessionSeed         string
}

// IsSet reports whether a session is established.
func (s *SessionSecrets) IsSet() bool {
	return len(s.SessionPassword) > 0
}

// Zero wipes all session material, locking the wallet.
func (s *SessionSecrets) Zero() {
	s.SessionPassword = ""
	s.SessionMnemonic = ""
	s.SessionMainMnemonic = ""
	s.SessionSeed = ""
}
