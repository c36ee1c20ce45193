package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// DeriveAddressOpts is the struct given to DeriveReceiveAddress and
// DeriveChangeAddress methods
type DeriveAddressOpts struct {
	Account uint32
	Index   uint32
}

func (o DeriveAddressOpts) validate() error {
	if o.Account > MaxHardenedValue {
		return ErrOutOfRangeDerivationPathAccount
	}
	return nil
}

// DeriveReceiveAddress derives the native segwit receiving address at
// m/84'/slip44'/account'/0/index.
func (w *Wallet) DeriveReceiveAddress(opts DeriveAddressOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	return w.deriveAddress(opts.Account, ExternalBranch, opts.Index)
}

// DeriveChangeAddress derives the native segwit change address at
// m/84'/slip44'/account'/1/index.
func (w *Wallet) DeriveChangeAddress(opts DeriveAddressOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	return w.deriveAddress(opts.Account, InternalBranch, opts.Index)
}

func (w *Wallet) deriveAddress(account, change, index uint32) (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}

	path := AccountDerivationPath(account, change, index)
	_, pubkey, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		DerivationPath: path.Relative(),
	})
	if err != nil {
		return "", err
	}

	return AddressFromPubKey(pubkey, w.params)
}

// AddressFromPubKey returns the P2WPKH address of the given public key,
// encoded with the bech32 prefix of the given network.
func AddressFromPubKey(
	pubkey *btcec.PublicKey, params *chaincfg.Params,
) (string, error) {
	if params == nil {
		return "", ErrNullNetwork
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubkey.SerializeCompressed()), params,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// AddressFromExtendedKey derives the address at change/index of the given
// account level extended key. It works with both private and neutered keys,
// which makes it the re-encoding primitive for imported and hardware
// accounts whenever the active network changes.
func AddressFromExtendedKey(
	accountKey *hdkeychain.ExtendedKey,
	change, index uint32,
	params *chaincfg.Params,
) (string, error) {
	if accountKey == nil {
		return "", ErrNullMasterKey
	}
	node, err := accountKey.Derive(change)
	if err != nil {
		return "", err
	}
	node, err = node.Derive(index)
	if err != nil {
		return "", err
	}
	pubkey, err := node.ECPubKey()
	if err != nil {
		return "", err
	}
	return AddressFromPubKey(pubkey, params)
}

// AddressFromAccountXpub derives the receiving address at /0/0 of the given
// serialized account extended public key.
func AddressFromAccountXpub(xpub string, params *chaincfg.Params) (string, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", ErrInvalidExtendedKey
	}
	return AddressFromExtendedKey(key, ExternalBranch, 0, params)
}

// OutputScriptForAddress returns the output script paying to the given
// address of the given network.
func OutputScriptForAddress(addr string, params *chaincfg.Params) ([]byte, error) {
	if params == nil {
		return nil, ErrNullNetwork
	}
	address, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, err
	}
	if !address.IsForNet(params) {
		return nil, ErrInvalidRecipientAddress
	}
	return txscript.PayToAddrScript(address)
}
