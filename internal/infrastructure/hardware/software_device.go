package hardware

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

const (
	// how far the device scans for the account matching a wallet policy.
	accountSearchLimit = 20
	// how far it scans each branch for the keys of the psbt inputs.
	addressSearchLimit = 20
)

// softwareSigner is a deterministic in-process device. It implements the
// whole signing contract from a mnemonic, so tests and dev mode exercise the
// same code paths as a physical device without one attached.
type softwareSigner struct {
	lock      *sync.RWMutex
	mnemonic  string
	masterKey *hdkeychain.ExtendedKey
	connected bool
}

// NewSoftwareSigner returns a software device holding the keys derived from
// the given mnemonic.
func NewSoftwareSigner(mnemonic string) (ports.HardwareSigner, error) {
	if !wallet.IsMnemonicValid(mnemonic) {
		return nil, wallet.ErrInvalidMnemonic
	}
	return &softwareSigner{
		lock:     &sync.RWMutex{},
		mnemonic: mnemonic,
	}, nil
}

func (s *softwareSigner) Connect(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.connected {
		return nil
	}

	// params only select serialization version bytes, never the derived keys.
	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: s.mnemonic,
		Params:   wallet.MainNetParams(),
	})
	if err != nil {
		return err
	}
	seedHex, err := w.SeedHex()
	if err != nil {
		return err
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return err
	}
	masterKey, err := hdkeychain.NewMaster(seed, wallet.MainNetParams())
	if err != nil {
		return err
	}

	s.masterKey = masterKey
	s.connected = true
	log.Debug("software signing device connected")
	return nil
}

func (s *softwareSigner) IsConnected() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.connected
}

func (s *softwareSigner) Dispose() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.masterKey = nil
	s.connected = false
}

func (s *softwareSigner) GetAddress(
	_ context.Context, path string,
) (string, error) {
	node, parsed, err := s.deriveNode(path)
	if err != nil {
		return "", err
	}
	if isEvmPath(path) {
		key, err := evmKeyFromNode(node)
		if err != nil {
			return "", err
		}
		return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
	}

	pubkey, err := node.ECPubKey()
	if err != nil {
		return "", err
	}
	params := wallet.MainNetParams()
	if len(parsed) > 1 && parsed[1] == hdkeychain.HardenedKeyStart+1 {
		params = wallet.TestNetParams()
	}
	return wallet.AddressFromPubKey(pubkey, params)
}

func (s *softwareSigner) GetPublicKey(
	_ context.Context, path string,
) (*ports.PublicKeyReply, error) {
	node, _, err := s.deriveNode(path)
	if err != nil {
		return nil, err
	}

	if isEvmPath(path) {
		key, err := evmKeyFromNode(node)
		if err != nil {
			return nil, err
		}
		return &ports.PublicKeyReply{
			PublicKey: hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey)),
			ChainCode: hex.EncodeToString(node.ChainCode()),
		}, nil
	}

	pubkey, err := node.ECPubKey()
	if err != nil {
		return nil, err
	}
	return &ports.PublicKeyReply{
		PublicKey: hex.EncodeToString(pubkey.SerializeCompressed()),
		ChainCode: hex.EncodeToString(node.ChainCode()),
	}, nil
}

func (s *softwareSigner) SignMessage(
	_ context.Context, path string, message []byte,
) (string, error) {
	account, err := s.evmAccountForPath(path)
	if err != nil {
		return "", err
	}
	return account.SignMessage(message)
}

func (s *softwareSigner) SignTypedData(
	_ context.Context, path string, domainHash, messageHash []byte,
) (string, error) {
	account, err := s.evmAccountForPath(path)
	if err != nil {
		return "", err
	}
	return account.SignTypedData(domainHash, messageHash)
}

func (s *softwareSigner) SignEvmTransaction(
	_ context.Context, path string, rawTx []byte,
) (*ports.EvmSignature, error) {
	node, _, err := s.deriveNode(path)
	if err != nil {
		return nil, err
	}
	key, err := evmKeyFromNode(node)
	if err != nil {
		return nil, err
	}

	tx := &types.Transaction{}
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, &ports.DeviceError{
			Msg: fmt.Sprintf("malformed transaction: %v", err),
		}
	}

	digest := types.LatestSignerForChainID(tx.ChainId()).Hash(tx)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	return &ports.EvmSignature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: hexutil.EncodeUint64(uint64(sig[64])),
	}, nil
}

func (s *softwareSigner) SignUtxoPsbt(
	_ context.Context, psbtBase64, walletPolicy string,
) ([]ports.InputSignature, error) {
	masterKey, err := s.requireConnected()
	if err != nil {
		return nil, err
	}

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(psbtBase64), true)
	if err != nil {
		return nil, err
	}
	xpub, origin, err := xpubFromPolicy(walletPolicy)
	if err != nil {
		return nil, err
	}
	accountNode, err := findAccountNode(masterKey, xpub, origin)
	if err != nil {
		return nil, err
	}
	keyByScript, err := accountKeysByScript(accountNode)
	if err != nil {
		return nil, err
	}

	signatures := make([]ports.InputSignature, 0, len(ptx.Inputs))
	for i := range ptx.Inputs {
		in := &ptx.Inputs[i]
		prevout := in.WitnessUtxo
		if prevout == nil {
			if in.NonWitnessUtxo == nil {
				return nil, &ports.DeviceError{
					Msg: fmt.Sprintf("input %d: missing utxo", i),
				}
			}
			prevIndex := ptx.UnsignedTx.TxIn[i].PreviousOutPoint.Index
			if int(prevIndex) >= len(in.NonWitnessUtxo.TxOut) {
				return nil, &ports.DeviceError{
					Msg: fmt.Sprintf("input %d: invalid previous output", i),
				}
			}
			prevout = in.NonWitnessUtxo.TxOut[prevIndex]
		}

		entry, ok := keyByScript[hex.EncodeToString(prevout.PkScript)]
		if !ok {
			continue
		}

		fetcher := txscript.NewCannedPrevOutputFetcher(
			prevout.PkScript, prevout.Value,
		)
		sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, fetcher)
		digest, err := txscript.CalcWitnessSigHash(
			prevout.PkScript, sigHashes, txscript.SigHashAll,
			ptx.UnsignedTx, i, prevout.Value,
		)
		if err != nil {
			return nil, err
		}
		signature := btcecdsa.Sign(entry.key, digest)
		signatures = append(signatures, ports.InputSignature{
			InputIndex: i,
			PubKey:     entry.pubKey,
			Signature:  append(signature.Serialize(), byte(txscript.SigHashAll)),
		})
	}
	if len(signatures) <= 0 {
		return nil, &ports.DeviceError{
			Msg: "no inputs belong to the wallet policy",
		}
	}
	return signatures, nil
}

func (s *softwareSigner) requireConnected() (*hdkeychain.ExtendedKey, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.connected {
		return nil, ports.ErrDeviceNotConnected
	}
	return s.masterKey, nil
}

func (s *softwareSigner) deriveNode(
	path string,
) (*hdkeychain.ExtendedKey, wallet.DerivationPath, error) {
	masterKey, err := s.requireConnected()
	if err != nil {
		return nil, nil, err
	}
	if path == "m" || path == "m/" {
		return masterKey, nil, nil
	}

	parsed, err := wallet.ParseDerivationPath(path)
	if err != nil {
		return nil, nil, err
	}
	node := masterKey
	for _, step := range parsed {
		node, err = node.Derive(step)
		if err != nil {
			return nil, nil, err
		}
	}
	return node, parsed, nil
}

func (s *softwareSigner) evmAccountForPath(path string) (*evm.Account, error) {
	node, _, err := s.deriveNode(path)
	if err != nil {
		return nil, err
	}
	key, err := evmKeyFromNode(node)
	if err != nil {
		return nil, err
	}
	return evm.NewAccountFromPrivateKey(
		hexutil.Encode(crypto.FromECDSA(key)),
	)
}

func evmKeyFromNode(node *hdkeychain.ExtendedKey) (*ecdsa.PrivateKey, error) {
	prvkey, err := node.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(prvkey.Serialize())
}

func isEvmPath(path string) bool {
	return strings.HasPrefix(path, "m/44'/60'")
}

// xpubFromPolicy extracts the account key of a single key wpkh wallet
// policy, the only kind the device registers, together with its key origin
// when the policy carries one.
func xpubFromPolicy(policy string) (string, string, error) {
	if !strings.HasPrefix(policy, "wpkh(") || !strings.HasSuffix(policy, ")") {
		return "", "", &ports.DeviceError{
			Msg: fmt.Sprintf("unsupported wallet policy: %s", policy),
		}
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(policy, "wpkh("), ")")
	var origin string
	if strings.HasPrefix(inner, "[") {
		end := strings.Index(inner, "]")
		if end < 0 {
			return "", "", &ports.DeviceError{
				Msg: fmt.Sprintf("unsupported wallet policy: %s", policy),
			}
		}
		origin = inner[1:end]
		inner = inner[end+1:]
	}
	key, _, found := strings.Cut(inner, "/")
	if !found {
		return "", "", &ports.DeviceError{
			Msg: fmt.Sprintf("unsupported wallet policy: %s", policy),
		}
	}
	return key, origin, nil
}

// findAccountNode resolves the private node whose key material matches the
// policy xpub. A key origin pins the exact derivation path, so any coin type
// works; policies without one fall back to scanning the bip84 account space
// of the mainnet and testnet coin types. Matching on raw key and chain code
// keeps the check independent from serialization version bytes.
func findAccountNode(
	masterKey *hdkeychain.ExtendedKey, xpub, origin string,
) (*hdkeychain.ExtendedKey, error) {
	target, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, &ports.DeviceError{
			Msg: fmt.Sprintf("malformed policy key: %v", err),
		}
	}
	targetPub, err := target.ECPubKey()
	if err != nil {
		return nil, err
	}
	targetPubBytes := targetPub.SerializeCompressed()

	matches := func(node *hdkeychain.ExtendedKey) (bool, error) {
		pubkey, err := node.ECPubKey()
		if err != nil {
			return false, err
		}
		return bytes.Equal(pubkey.SerializeCompressed(), targetPubBytes) &&
			bytes.Equal(node.ChainCode(), target.ChainCode()), nil
	}

	if origin != "" {
		parsed, err := wallet.ParseDerivationPath(origin)
		if err != nil {
			return nil, &ports.DeviceError{
				Msg: fmt.Sprintf("malformed policy key origin: %v", err),
			}
		}
		node := masterKey
		for _, step := range parsed {
			if node, err = node.Derive(step); err != nil {
				return nil, err
			}
		}
		ok, err := matches(node)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ports.DeviceError{
				Msg: "policy key does not match its key origin",
			}
		}
		return node, nil
	}

	for _, coin := range []uint32{0, 1} {
		for account := uint32(0); account <= accountSearchLimit; account++ {
			node := masterKey
			for _, step := range []uint32{
				hdkeychain.HardenedKeyStart + wallet.Bip84Purpose,
				hdkeychain.HardenedKeyStart + coin,
				hdkeychain.HardenedKeyStart + account,
			} {
				if node, err = node.Derive(step); err != nil {
					return nil, err
				}
			}
			ok, err := matches(node)
			if err != nil {
				return nil, err
			}
			if ok {
				return node, nil
			}
		}
	}
	return nil, &ports.DeviceError{Msg: "unknown wallet policy key"}
}

type accountKey struct {
	key    *btcec.PrivateKey
	pubKey []byte
}

// accountKeysByScript maps the p2wpkh output script of every address within
// the search limit to its signing key.
func accountKeysByScript(
	accountNode *hdkeychain.ExtendedKey,
) (map[string]accountKey, error) {
	keys := make(map[string]accountKey)
	for _, branch := range []uint32{wallet.ExternalBranch, wallet.InternalBranch} {
		branchNode, err := accountNode.Derive(branch)
		if err != nil {
			return nil, err
		}
		for index := uint32(0); index <= addressSearchLimit; index++ {
			child, err := branchNode.Derive(index)
			if err != nil {
				return nil, err
			}
			prvkey, err := child.ECPrivKey()
			if err != nil {
				return nil, err
			}
			pubKey := prvkey.PubKey().SerializeCompressed()
			script, err := txscript.NewScriptBuilder().
				AddOp(txscript.OP_0).
				AddData(btcutil.Hash160(pubKey)).
				Script()
			if err != nil {
				return nil, err
			}
			keys[hex.EncodeToString(script)] = accountKey{
				key:    prvkey,
				pubKey: pubKey,
			}
		}
	}
	return keys, nil
}
