package application

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// signWithLedger signs through the ledger app. Unlike trezor, the app
// resolves inputs from bip32 derivation fields and refuses non-witness
// inputs, so the packet is enriched before it goes to the device.
func (t *transactionService) signWithLedger(
	ctx context.Context, account *domain.Account, psbtBase64 string,
) (string, error) {
	signer, err := t.store.hardwareSignerForType(domain.LedgerAccountType)
	if err != nil {
		return "", err
	}
	if !signer.IsConnected() {
		if err := signer.Connect(ctx); err != nil {
			return "", err
		}
	}

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(psbtBase64), true)
	if err != nil {
		return "", err
	}
	params, err := t.store.state.ActiveNetwork.WalletParams()
	if err != nil {
		return "", err
	}

	reply, err := signer.GetPublicKey(ctx, "m")
	if err != nil {
		return "", err
	}
	fingerprint, err := fingerprintFromPublicKey(reply.PublicKey)
	if err != nil {
		return "", err
	}
	if err := enrichPsbtForLedger(ptx, account, fingerprint, params); err != nil {
		return "", err
	}
	enriched, err := ptx.B64Encode()
	if err != nil {
		return "", err
	}

	signatures, err := signer.SignUtxoPsbt(
		ctx, enriched, walletPolicyForAccount(account),
	)
	if err != nil {
		return "", err
	}
	if err := applyInputSignatures(ptx, signatures); err != nil {
		return "", err
	}
	if err := psbt.MaybeFinalizeAll(ptx); err != nil {
		log.WithError(err).Debug("psbt left partially finalized after ledger signing")
	}
	return ptx.B64Encode()
}

// fingerprintFromPublicKey returns the bip32 master key fingerprint of the
// given serialized public key, in the byte order psbt packets carry it.
func fingerprintFromPublicKey(publicKey string) (uint32, error) {
	pubkey, err := hex.DecodeString(strings.TrimPrefix(publicKey, "0x"))
	if err != nil {
		return 0, fmt.Errorf("malformed device public key: %w", err)
	}
	return binary.LittleEndian.Uint32(btcutil.Hash160(pubkey)[:4]), nil
}

type ledgerKeyInfo struct {
	pubKey []byte
	path   []uint32
}

// enrichPsbtForLedger completes every input with the witness utxo and the
// bip32 derivation of its key, both required by the ledger bitcoin app.
func enrichPsbtForLedger(
	ptx *psbt.Packet,
	account *domain.Account,
	fingerprint uint32,
	params *chaincfg.Params,
) error {
	node, err := hdkeychain.NewKeyFromString(account.Xpub)
	if err != nil {
		return err
	}
	basePath, err := ledgerAccountPath(account, node, params)
	if err != nil {
		return err
	}

	infoByScript := make(map[string]ledgerKeyInfo)
	for _, branch := range []uint32{wallet.ExternalBranch, wallet.InternalBranch} {
		branchNode, err := node.Derive(branch)
		if err != nil {
			return err
		}
		for index := uint32(0); index <= addressGapLimit; index++ {
			child, err := branchNode.Derive(index)
			if err != nil {
				return err
			}
			pubkey, err := child.ECPubKey()
			if err != nil {
				return err
			}
			address, err := wallet.AddressFromPubKey(pubkey, params)
			if err != nil {
				return err
			}
			script, err := wallet.OutputScriptForAddress(address, params)
			if err != nil {
				return err
			}
			path := make([]uint32, 0, len(basePath)+2)
			path = append(path, basePath...)
			path = append(path, branch, index)
			infoByScript[hex.EncodeToString(script)] = ledgerKeyInfo{
				pubKey: pubkey.SerializeCompressed(),
				path:   path,
			}
		}
	}

	for i := range ptx.Inputs {
		in := &ptx.Inputs[i]
		if in.WitnessUtxo == nil {
			if in.NonWitnessUtxo == nil {
				return wallet.ErrNullInputWitnessUtxo
			}
			prevIndex := ptx.UnsignedTx.TxIn[i].PreviousOutPoint.Index
			if int(prevIndex) >= len(in.NonWitnessUtxo.TxOut) {
				return fmt.Errorf(
					"input %d: previous output index out of range", i,
				)
			}
			in.WitnessUtxo = in.NonWitnessUtxo.TxOut[prevIndex]
		}
		info, ok := infoByScript[hex.EncodeToString(in.WitnessUtxo.PkScript)]
		if !ok {
			return fmt.Errorf("input %d does not belong to the account", i)
		}
		in.Bip32Derivation = []*psbt.Bip32Derivation{{
			PubKey:               info.pubKey,
			MasterKeyFingerprint: fingerprint,
			Bip32Path:            info.path,
		}}
	}
	return nil
}

// ledgerAccountPath resolves the account level derivation path registered at
// pairing time, falling back to the bip84 path reconstructed from the xpub
// child index for accounts imported before paths were persisted.
func ledgerAccountPath(
	account *domain.Account,
	node *hdkeychain.ExtendedKey,
	params *chaincfg.Params,
) ([]uint32, error) {
	if account.DerivationPath != "" {
		parsed, err := wallet.ParseDerivationPath(account.DerivationPath)
		if err != nil {
			return nil, err
		}
		return []uint32(parsed), nil
	}
	return []uint32{
		hdkeychain.HardenedKeyStart + wallet.Bip84Purpose,
		hdkeychain.HardenedKeyStart + params.HDCoinType,
		node.ChildIndex(),
	}, nil
}
