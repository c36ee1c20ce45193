package wallet

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Wallet is the signing engine of a UTXO chain. It holds the BIP39 mnemonic
// and seed of a hierarchical deterministic wallet along with the master node
// and the BIP84 base node (m/84'/slip44') derived against the network
// parameters the wallet is bound to. Rebinding to another network means
// creating a new Wallet from the same seed with different params.
type Wallet struct {
	mnemonic  string
	seed      []byte
	masterKey *hdkeychain.ExtendedKey
	baseNode  *hdkeychain.ExtendedKey
	params    *chaincfg.Params
}

// NewWalletOpts is the struct given to the NewWallet method
type NewWalletOpts struct {
	EntropySize int
	Params      *chaincfg.Params
}

func (o NewWalletOpts) validate() error {
	if o.EntropySize < 128 || o.EntropySize > 256 || o.EntropySize%32 != 0 {
		return ErrInvalidEntropySize
	}
	if o.Params == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWallet creates a new wallet with a freshly generated mnemonic, bound to
// the given network parameters.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mnemonic, err := generateMnemonic(opts.EntropySize)
	if err != nil {
		return nil, err
	}

	return NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		Params:   opts.Params,
	})
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic method
type NewWalletFromMnemonicOpts struct {
	Mnemonic string
	Params   *chaincfg.Params
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !isMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	if o.Params == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWalletFromMnemonic generates the wallet seed from the given mnemonic
// and binds the master and base nodes to the given network parameters.
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seed := generateSeedFromMnemonic(opts.Mnemonic)
	w, err := newWalletFromSeed(seed, opts.Params)
	if err != nil {
		return nil, err
	}
	w.mnemonic = opts.Mnemonic
	return w, nil
}

// NewWalletFromSeedOpts is the struct given to the NewWalletFromSeed method
type NewWalletFromSeedOpts struct {
	SeedHex string
	Params  *chaincfg.Params
}

func (o NewWalletFromSeedOpts) validate() error {
	if len(o.SeedHex) <= 0 {
		return ErrNullSeed
	}
	if _, err := hex.DecodeString(o.SeedHex); err != nil {
		return ErrNullSeed
	}
	if o.Params == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWalletFromSeed rebuilds a wallet from a hex seed without going through
// the mnemonic stretching again. This is the fast path used when rebinding
// an already unlocked wallet to another network.
func NewWalletFromSeed(opts NewWalletFromSeedOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	seed, _ := hex.DecodeString(opts.SeedHex)
	return newWalletFromSeed(seed, opts.Params)
}

func newWalletFromSeed(seed []byte, params *chaincfg.Params) (*Wallet, error) {
	masterKey, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}
	baseNode := masterKey
	for _, step := range BaseDerivationPath(params.HDCoinType) {
		baseNode, err = baseNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}

	return &Wallet{
		seed:      seed,
		masterKey: masterKey,
		baseNode:  baseNode,
		params:    params,
	}, nil
}

func (w *Wallet) validate() error {
	if w.masterKey == nil || w.baseNode == nil {
		return ErrNullMasterKey
	}
	if len(w.seed) <= 0 {
		return ErrNullSeed
	}
	if w.params == nil {
		return ErrNullNetwork
	}
	return nil
}

// Mnemonic is the getter for the wallet mnemonic. Wallets restored from a
// bare seed have none.
func (w *Wallet) Mnemonic() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	if len(w.mnemonic) <= 0 {
		return "", ErrNullMnemonic
	}
	return w.mnemonic, nil
}

// SeedHex is the getter for the wallet seed in hex format.
func (w *Wallet) SeedHex() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	return hex.EncodeToString(w.seed), nil
}

// Params is the getter for the network parameters the wallet is bound to.
func (w *Wallet) Params() *chaincfg.Params {
	return w.params
}

// MasterFingerprint returns the BIP32 fingerprint of the master node, used
// to fill the derivation metadata of PSBTs signed by descriptor based
// hardware wallets.
func (w *Wallet) MasterFingerprint() (uint32, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}
	pubKey, err := w.masterKey.ECPubKey()
	if err != nil {
		return 0, err
	}
	fingerprint := btcutil.Hash160(pubKey.SerializeCompressed())[:4]
	// psbt serializes the fingerprint as a little endian uint32, so decode
	// it the same way to keep the on-the-wire bytes in BIP32 order.
	return binary.LittleEndian.Uint32(fingerprint), nil
}
