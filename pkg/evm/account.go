package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	purposeBip44 = 44
	coinTypeEth  = 60
)

// Account is the data structure representing an EVM key pair, either derived
// from a seed at the standard m/44'/60'/0'/0/{index} path or imported from a
// raw private key.
type Account struct {
	privateKey     *ecdsa.PrivateKey
	derivationPath string
}

// DeriveAccountOpts is the struct given to DeriveAccount method
type DeriveAccountOpts struct {
	Seed         []byte
	AddressIndex uint32
}

func (o DeriveAccountOpts) validate() error {
	if len(o.Seed) <= 0 {
		return ErrNullSeed
	}
	return nil
}

// DeriveAccount derives the key pair at m/44'/60'/0'/0/{index} from the given
// seed and returns the wrapping account.
func DeriveAccount(opts DeriveAccountOpts) (*Account, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// the network params only select version bytes here, never serialized.
	masterKey, err := hdkeychain.NewMaster(opts.Seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	levels := []uint32{
		hdkeychain.HardenedKeyStart + purposeBip44,
		hdkeychain.HardenedKeyStart + coinTypeEth,
		hdkeychain.HardenedKeyStart,
		0,
		opts.AddressIndex,
	}
	key := masterKey
	for _, level := range levels {
		key, err = key.Derive(level)
		if err != nil {
			return nil, err
		}
	}

	ecPrvkey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	privateKey, err := crypto.ToECDSA(ecPrvkey.Serialize())
	if err != nil {
		return nil, err
	}

	return &Account{
		privateKey: privateKey,
		derivationPath: fmt.Sprintf(
			"m/%d'/%d'/0'/0/%d", purposeBip44, coinTypeEth, opts.AddressIndex,
		),
	}, nil
}

// NewAccountFromPrivateKey returns the account for the given raw private key,
// hex encoded with an optional 0x prefix.
func NewAccountFromPrivateKey(privateKeyHex string) (*Account, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if len(keyHex) != 64 {
		return nil, ErrInvalidPrivateKey
	}
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return &Account{privateKey: privateKey}, nil
}

// Address returns the EIP55 checksummed address of the account.
func (a *Account) Address() string {
	return crypto.PubkeyToAddress(a.privateKey.PublicKey).Hex()
}

// PublicKey returns the uncompressed public key of the account in hex format.
func (a *Account) PublicKey() string {
	return hexutil.Encode(crypto.FromECDSAPub(&a.privateKey.PublicKey))
}

// PrivateKeyHex returns the private key of the account in hex format with the
// 0x prefix.
func (a *Account) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(a.privateKey))
}

// DerivationPath returns the BIP44 path of a derived account, or an empty
// string for an imported one.
func (a *Account) DerivationPath() string {
	return a.derivationPath
}
