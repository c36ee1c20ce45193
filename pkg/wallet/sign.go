package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// SignTransactionOpts is the struct given to SignTransaction method
type SignTransactionOpts struct {
	PsbtBase64        string
	DerivationPathMap map[string]string
}

func (o SignTransactionOpts) validate() error {
	ptx, err := decodePsbt(o.PsbtBase64)
	if err != nil {
		return err
	}
	if len(o.DerivationPathMap) <= 0 {
		return ErrEmptyDerivationPaths
	}
	if len(ptx.Inputs) > len(o.DerivationPathMap) {
		return ErrInvalidDerivationPathsLength
	}

	for script, path := range o.DerivationPathMap {
		derivationPath, err := ParseDerivationPath(path)
		if err != nil {
			return fmt.Errorf(
				"invalid derivation path '%s' for script '%s': %v",
				path, script, err,
			)
		}
		err = checkDerivationPath(derivationPath)
		if err != nil {
			return fmt.Errorf(
				"invalid derivation path '%s' for script '%s': %v",
				path, script, err,
			)
		}
	}

	for i, in := range ptx.Inputs {
		if in.WitnessUtxo == nil {
			return ErrNullInputWitnessUtxo
		}
		script := in.WitnessUtxo.PkScript
		_, ok := o.DerivationPathMap[hex.EncodeToString(script)]
		if !ok {
			return fmt.Errorf(
				"derivation path not found in list for input %d with script '%s'",
				i, hex.EncodeToString(script),
			)
		}
	}

	return nil
}

// SignTransaction signs all inputs of a partial transaction using the keys
// derived with the help of the map script:derivation_path. The returned
// psbt is not finalized, signatures are stored as partial signatures of
// their inputs.
func (w *Wallet) SignTransaction(opts SignTransactionOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	ptx, _ := decodePsbt(opts.PsbtBase64)
	for i, in := range ptx.Inputs {
		path := opts.DerivationPathMap[hex.EncodeToString(in.WitnessUtxo.PkScript)]
		if err := w.signInput(ptx, i, path); err != nil {
			return "", err
		}
	}

	return ptx.B64Encode()
}

// SignInputOpts is the struct given to SignInput method
type SignInputOpts struct {
	PsbtBase64     string
	InIndex        uint32
	DerivationPath string
}

func (o SignInputOpts) validate() error {
	ptx, err := decodePsbt(o.PsbtBase64)
	if err != nil {
		return err
	}
	if int(o.InIndex) >= len(ptx.Inputs) {
		return fmt.Errorf(
			"input index must be in range [0, %d]",
			len(ptx.Inputs)-1,
		)
	}
	derivationPath, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}
	if err := checkDerivationPath(derivationPath); err != nil {
		return err
	}

	if ptx.Inputs[o.InIndex].WitnessUtxo == nil {
		return ErrNullInputWitnessUtxo
	}

	return nil
}

// SignInput takes care of producing (and verifying) a signature for a
// specific input of a partial transaction with the key derived from the
// provided path.
func (w *Wallet) SignInput(opts SignInputOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	ptx, _ := decodePsbt(opts.PsbtBase64)

	if err := w.signInput(ptx, int(opts.InIndex), opts.DerivationPath); err != nil {
		return "", err
	}

	return ptx.B64Encode()
}

// SignPsbtWithAccountKey signs all inputs of a partial transaction with keys
// derived from the given account extended key, resolving the key of every
// input through the map script:"change/index". It serves accounts imported
// from a bare extended key, for which no master node exists to derive from.
// The returned psbt is not finalized.
func SignPsbtWithAccountKey(
	accountKey *hdkeychain.ExtendedKey,
	psbtBase64 string,
	pathByScript map[string]string,
) (string, error) {
	if accountKey == nil {
		return "", ErrNullAccountKey
	}
	ptx, err := decodePsbt(psbtBase64)
	if err != nil {
		return "", err
	}
	if len(pathByScript) <= 0 {
		return "", ErrEmptyDerivationPaths
	}

	for i, in := range ptx.Inputs {
		if in.WitnessUtxo == nil {
			return "", ErrNullInputWitnessUtxo
		}
		script := hex.EncodeToString(in.WitnessUtxo.PkScript)
		path, ok := pathByScript[script]
		if !ok {
			return "", fmt.Errorf(
				"derivation path not found in list for input %d with script '%s'",
				i, script,
			)
		}
		derivationPath, err := ParseDerivationPath(path)
		if err != nil {
			return "", err
		}
		if len(derivationPath) != 2 {
			return "", ErrInvalidDerivationPathLength
		}

		hdNode := accountKey
		for _, step := range derivationPath {
			hdNode, err = hdNode.Derive(step)
			if err != nil {
				return "", err
			}
		}
		prvkey, err := hdNode.ECPrivKey()
		if err != nil {
			return "", err
		}
		if err := signPsbtInput(ptx, i, prvkey, prvkey.PubKey()); err != nil {
			return "", err
		}
	}

	return ptx.B64Encode()
}

func (w *Wallet) signInput(ptx *psbt.Packet, inIndex int, derivationPath string) error {
	prvkey, pubkey, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		DerivationPath: derivationPath,
	})
	if err != nil {
		return err
	}
	return signPsbtInput(ptx, inIndex, prvkey, pubkey)
}

func signPsbtInput(
	ptx *psbt.Packet, inIndex int, prvkey *btcec.PrivateKey, pubkey *btcec.PublicKey,
) error {
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return err
	}

	prevout := ptx.Inputs[inIndex].WitnessUtxo
	fetcher := txscript.NewCannedPrevOutputFetcher(prevout.PkScript, prevout.Value)
	sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, fetcher)

	hashForSignature, err := txscript.CalcWitnessSigHash(
		prevout.PkScript, sigHashes, txscript.SigHashAll,
		ptx.UnsignedTx, inIndex, prevout.Value,
	)
	if err != nil {
		return err
	}

	signature := ecdsa.Sign(prvkey, hashForSignature)

	if !signature.Verify(hashForSignature, pubkey) {
		return fmt.Errorf(
			"signature verification failed for input %d",
			inIndex,
		)
	}

	sigWithSigHashType := append(signature.Serialize(), byte(txscript.SigHashAll))
	if _, err := updater.Sign(
		inIndex,
		sigWithSigHashType,
		pubkey.SerializeCompressed(),
		nil,
		nil,
	); err != nil {
		return err
	}
	return nil
}

func decodePsbt(psbtBase64 string) (*psbt.Packet, error) {
	if len(psbtBase64) <= 0 {
		return nil, ErrNullPsbt
	}
	return psbt.NewFromRawBytes(strings.NewReader(psbtBase64), true)
}
