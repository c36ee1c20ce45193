package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ExtendedKeyOpts is the struct given to
// ExtendedPrivateKey and ExtendedPublicKey methods
type ExtendedKeyOpts struct {
	Account uint32
}

func (o ExtendedKeyOpts) validate() error {
	if o.Account > (MaxHardenedValue) {
		return ErrOutOfRangeDerivationPathAccount
	}
	return nil
}

// AccountNode derives the BIP84 account node m/84'/slip44'/account' of the
// wallet base node.
func (w *Wallet) AccountNode(opts ExtendedKeyOpts) (*hdkeychain.ExtendedKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w.baseNode.Derive(hdkeychain.HardenedKeyStart + opts.Account)
}

// ExtendedPrivateKey returns the extended private key of the given account,
// serialized with the BIP84 version bytes of the network the wallet is
// bound to (zprv on mainnet chains, vprv on testnet ones).
func (w *Wallet) ExtendedPrivateKey(opts ExtendedKeyOpts) (string, error) {
	accountNode, err := w.AccountNode(opts)
	if err != nil {
		return "", err
	}
	return accountNode.String(), nil
}

// ExtendedPublicKey returns the neutered extended key of the given account,
// serialized with the BIP84 version bytes of the network the wallet is
// bound to (zpub on mainnet chains, vpub on testnet ones).
func (w *Wallet) ExtendedPublicKey(opts ExtendedKeyOpts) (string, error) {
	accountNode, err := w.AccountNode(opts)
	if err != nil {
		return "", err
	}
	xpub, err := accountNode.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

// DeriveSigningKeyPairOpts is the struct given to DeriveSigningKeyPair method
type DeriveSigningKeyPairOpts struct {
	DerivationPath string
}

func (o DeriveSigningKeyPairOpts) validate() error {
	derivationPath, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}

	return checkDerivationPath(derivationPath)
}

// DeriveSigningKeyPair derives the key pair of the provided derivation path,
// relative to the wallet base node, ie. in the form "account'/change/index".
func (w *Wallet) DeriveSigningKeyPair(opts DeriveSigningKeyPairOpts) (
	*btcec.PrivateKey,
	*btcec.PublicKey,
	error,
) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	if err := w.validate(); err != nil {
		return nil, nil, err
	}

	hdNode := w.baseNode
	derivationPath, _ := ParseDerivationPath(opts.DerivationPath)
	var err error
	for _, step := range derivationPath {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, nil, err
		}
	}

	privateKey, err := hdNode.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}
	publicKey, err := hdNode.ECPubKey()
	if err != nil {
		return nil, nil, err
	}

	return privateKey, publicKey, nil
}
