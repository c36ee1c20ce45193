package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

// Trezor script type identifiers, mirrored from the device protocol.
const (
	trezorInputSpendAddress     = "SPENDADDRESS"
	trezorInputSpendMultisig    = "SPENDMULTISIG"
	trezorInputSpendWitness     = "SPENDWITNESS"
	trezorInputSpendP2SHWitness = "SPENDP2SHWITNESS"

	trezorOutputPayToAddress     = "PAYTOADDRESS"
	trezorOutputPayToWitness     = "PAYTOWITNESS"
	trezorOutputPayToP2SHWitness = "PAYTOP2SHWITNESS"
	trezorOutputPayToOpReturn    = "PAYTOOPRETURN"
)

func (t *transactionService) signWithTrezor(
	ctx context.Context, account *domain.Account, psbtBase64 string,
) (string, error) {
	signer, err := t.store.hardwareSignerForType(domain.TrezorAccountType)
	if err != nil {
		return "", err
	}
	if !signer.IsConnected() {
		if err := signer.Connect(ctx); err != nil {
			return "", err
		}
	}

	ptx, err := psbt.NewFromRawBytes(
		strings.NewReader(psbtBase64), true,
	)
	if err != nil {
		return "", err
	}

	// The device refuses scripts it cannot represent, classifying upfront
	// turns an opaque device error into an actionable one.
	for i := range ptx.Inputs {
		if _, err := classifyTrezorInput(&ptx.Inputs[i]); err != nil {
			return "", fmt.Errorf("input %d: %w", i, err)
		}
	}
	for i, out := range ptx.UnsignedTx.TxOut {
		if _, err := classifyTrezorOutput(out.PkScript); err != nil {
			return "", fmt.Errorf("output %d: %w", i, err)
		}
	}

	signatures, err := signer.SignUtxoPsbt(
		ctx, psbtBase64, walletPolicyForAccount(account),
	)
	if err != nil {
		return "", err
	}
	if err := applyInputSignatures(ptx, signatures); err != nil {
		return "", err
	}
	if err := psbt.MaybeFinalizeAll(ptx); err != nil {
		// Not all inputs may belong to the device, leave the packet partial.
		log.WithError(err).Debug("psbt left partially finalized after trezor signing")
	}
	return ptx.B64Encode()
}

func classifyTrezorInput(in *psbt.PInput) (string, error) {
	switch {
	case len(in.WitnessScript) > 0:
		return trezorInputSpendMultisig, nil
	case len(in.RedeemScript) > 0:
		return trezorInputSpendP2SHWitness, nil
	case in.WitnessUtxo != nil:
		return trezorInputSpendWitness, nil
	case in.NonWitnessUtxo != nil:
		return trezorInputSpendAddress, nil
	default:
		return "", ErrUnsupportedScriptType
	}
}

func classifyTrezorOutput(script []byte) (string, error) {
	switch txscript.GetScriptClass(script) {
	case txscript.NullDataTy:
		return trezorOutputPayToOpReturn, nil
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy,
		txscript.WitnessV1TaprootTy:
		return trezorOutputPayToWitness, nil
	case txscript.ScriptHashTy:
		return trezorOutputPayToP2SHWitness, nil
	case txscript.PubKeyHashTy, txscript.PubKeyTy:
		return trezorOutputPayToAddress, nil
	default:
		return "", ErrUnsupportedScriptType
	}
}
