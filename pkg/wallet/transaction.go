package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

// DustLimit is the amount in satoshis under which a change output is folded
// into fees instead of being added to the transaction.
const DustLimit = 546

// Recipient is the pair address/amount of the beneficiary of a transfer.
type Recipient struct {
	Address string
	Amount  uint64
}

// CreateTx crafts a new empty partial transaction
func (w *Wallet) CreateTx() (string, error) {
	ptx, err := psbt.NewFromUnsignedTx(wire.NewMsgTx(2))
	if err != nil {
		return "", err
	}
	return ptx.B64Encode()
}

// BuildTransactionOpts is the struct given to BuildTransaction method
type BuildTransactionOpts struct {
	Unspents             []explorer.Utxo
	Recipients           []Recipient
	ChangeDerivationPath string
	// ChangeAddress takes precedence over ChangeDerivationPath and lets the
	// change go back to keys the wallet does not own, like those of imported
	// or hardware accounts.
	ChangeAddress                 string
	SatsPerByte                   float64
	SubtractFeeFromFirstRecipient bool
	// AssetPayload is the optional allocation commitment added to the
	// transaction as a null data output.
	AssetPayload []byte
}

func (o BuildTransactionOpts) validate(w *Wallet) error {
	if len(o.Unspents) <= 0 {
		return ErrEmptyUnspents
	}
	for _, u := range o.Unspents {
		if _, _, err := u.Parse(); err != nil {
			return err
		}
	}
	if len(o.Recipients) <= 0 {
		return ErrNullRecipients
	}
	for _, r := range o.Recipients {
		if r.Amount == 0 {
			return ErrZeroOutputAmount
		}
		if _, err := OutputScriptForAddress(r.Address, w.params); err != nil {
			return ErrInvalidRecipientAddress
		}
	}
	if o.SatsPerByte <= 0 {
		return ErrZeroFeeRate
	}

	return validateChangeTarget(o.ChangeAddress, o.ChangeDerivationPath, w)
}

func validateChangeTarget(address, derivationPath string, w *Wallet) error {
	if len(address) > 0 {
		if _, err := OutputScriptForAddress(address, w.params); err != nil {
			return ErrInvalidChangeAddress
		}
		return nil
	}
	if len(derivationPath) <= 0 {
		return ErrNullChangeDerivationPath
	}
	changeDerivationPath, err := ParseDerivationPath(derivationPath)
	if err != nil {
		return err
	}
	return checkDerivationPath(changeDerivationPath)
}

// BuildTransactionResult is what BuildTransaction returns
type BuildTransactionResult struct {
	PsbtBase64    string
	SelectedUtxos []explorer.Utxo
	Fee           uint64
	Change        uint64
}

// BuildTransaction selects the unspents covering the amounts of the given
// recipients plus network fees, and packs them in an unsigned partial
// transaction with the recipient outputs, the optional null data commitment
// and, when worth it, the change output locked to the address derived with
// the change derivation path. Inputs are selected so that the minimum
// number of them is used to reach the target amount.
func (w *Wallet) BuildTransaction(opts BuildTransactionOpts) (*BuildTransactionResult, error) {
	if err := opts.validate(w); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	outSum := uint64(0)
	for _, r := range opts.Recipients {
		outSum += r.Amount
	}

	// The fee depends on the number of selected inputs and the selection
	// target depends on the fee. Iterate until the fee converges, which
	// takes one extra round at most whenever the previous selection already
	// covers the new target.
	var (
		selected []explorer.Utxo
		fee      uint64
		err      error
	)
	for i := 0; i < 3; i++ {
		target := outSum + fee
		if opts.SubtractFeeFromFirstRecipient {
			target = outSum
		}
		selected, _, err = explorer.SelectUnspents(opts.Unspents, target, "")
		if err != nil {
			return nil, ErrInsufficientFunds
		}

		newFee := w.feeForSelection(len(selected), opts)
		if newFee == fee {
			break
		}
		fee = newFee
	}

	totalSelected := uint64(0)
	for _, u := range selected {
		totalSelected += u.Value()
	}

	var change uint64
	recipients := make([]Recipient, len(opts.Recipients))
	copy(recipients, opts.Recipients)
	if opts.SubtractFeeFromFirstRecipient {
		if recipients[0].Amount <= fee+DustLimit {
			return nil, ErrInsufficientFunds
		}
		recipients[0].Amount -= fee
		change = totalSelected - outSum
	} else {
		if totalSelected < outSum+fee {
			return nil, ErrInsufficientFunds
		}
		change = totalSelected - outSum - fee
	}

	unsignedTx := wire.NewMsgTx(2)
	for _, u := range selected {
		input, _, _ := u.Parse()
		unsignedTx.AddTxIn(input)
	}
	for _, r := range recipients {
		script, _ := OutputScriptForAddress(r.Address, w.params)
		unsignedTx.AddTxOut(wire.NewTxOut(int64(r.Amount), script))
	}
	if len(opts.AssetPayload) > 0 {
		nullDataScript, err := txscript.NullDataScript(opts.AssetPayload)
		if err != nil {
			return nil, err
		}
		unsignedTx.AddTxOut(wire.NewTxOut(0, nullDataScript))
	}
	if change > DustLimit {
		changeScript, err := w.changeScript(
			opts.ChangeAddress, opts.ChangeDerivationPath,
		)
		if err != nil {
			return nil, err
		}
		unsignedTx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	} else {
		// dust change is left to the miners
		fee += change
		change = 0
	}

	ptx, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		return nil, err
	}
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return nil, err
	}
	for i, u := range selected {
		_, prevout, _ := u.Parse()
		if err := updater.AddInWitnessUtxo(prevout, i); err != nil {
			return nil, err
		}
		if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
			return nil, err
		}
	}

	psbtBase64, err := ptx.B64Encode()
	if err != nil {
		return nil, err
	}

	return &BuildTransactionResult{
		PsbtBase64:    psbtBase64,
		SelectedUtxos: selected,
		Fee:           fee,
		Change:        change,
	}, nil
}

// AssetTransfer groups the recipients of a single asset of an asset
// transaction.
type AssetTransfer struct {
	Asset      string
	Recipients []Recipient
}

// BuildAssetTransactionOpts is the struct given to BuildAssetTransaction method
type BuildAssetTransactionOpts struct {
	Unspents             []explorer.Utxo
	Transfers            []AssetTransfer
	ChangeDerivationPath string
	ChangeAddress        string
	SatsPerByte          float64
	// AssetPayload is the allocation commitment added to the transaction as
	// a null data output. Indexers rely on it to color the outputs, thus it
	// is mandatory here.
	AssetPayload []byte
}

func (o BuildAssetTransactionOpts) validate(w *Wallet) error {
	if len(o.Unspents) <= 0 {
		return ErrEmptyUnspents
	}
	for _, u := range o.Unspents {
		if _, _, err := u.Parse(); err != nil {
			return err
		}
	}
	if len(o.Transfers) <= 0 {
		return ErrEmptyAllocations
	}
	for _, t := range o.Transfers {
		if len(t.Asset) <= 0 {
			return ErrNullAssetId
		}
		if len(t.Recipients) <= 0 {
			return ErrNullRecipients
		}
		for _, r := range t.Recipients {
			if r.Amount == 0 {
				return ErrZeroOutputAmount
			}
			if _, err := OutputScriptForAddress(r.Address, w.params); err != nil {
				return ErrInvalidRecipientAddress
			}
		}
	}
	if o.SatsPerByte <= 0 {
		return ErrZeroFeeRate
	}
	if len(o.AssetPayload) <= 0 {
		return ErrNullAssetPayload
	}

	return validateChangeTarget(o.ChangeAddress, o.ChangeDerivationPath, w)
}

// BuildAssetTransaction builds the unsigned partial transaction moving the
// assets of the given transfers to their recipients. Every asset is funded
// with the unspents tagged with its id, while network fees are funded with
// untagged native unspents only. The allocation commitment is appended as a
// null data output so that indexers can color the outputs of the transaction.
func (w *Wallet) BuildAssetTransaction(
	opts BuildAssetTransactionOpts,
) (*BuildTransactionResult, error) {
	if err := opts.validate(w); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	// The selection of every asset is fixed by its allocation, only the
	// native selection paying the fees depends on the fee itself.
	selectedAssets := make([]explorer.Utxo, 0)
	assetChanges := make([]uint64, len(opts.Transfers))
	numAssetOuts := 0
	for i, t := range opts.Transfers {
		target := uint64(0)
		for _, r := range t.Recipients {
			target += r.Amount
		}
		selected, change, err := explorer.SelectUnspents(
			opts.Unspents, target, t.Asset,
		)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", t.Asset, ErrInsufficientFunds)
		}
		selectedAssets = append(selectedAssets, selected...)
		assetChanges[i] = change
		numAssetOuts += len(t.Recipients)
		if change > 0 {
			numAssetOuts++
		}
	}

	var (
		selectedNative []explorer.Utxo
		fee            uint64
		err            error
	)
	fee = w.feeForAssetSelection(len(selectedAssets)+1, numAssetOuts, opts)
	for i := 0; i < 3; i++ {
		selectedNative, _, err = explorer.SelectUnspents(opts.Unspents, fee, "")
		if err != nil {
			return nil, ErrInsufficientFunds
		}

		newFee := w.feeForAssetSelection(
			len(selectedAssets)+len(selectedNative), numAssetOuts, opts,
		)
		if newFee == fee {
			break
		}
		fee = newFee
	}

	totalNative := uint64(0)
	for _, u := range selectedNative {
		totalNative += u.Value()
	}
	if totalNative < fee {
		return nil, ErrInsufficientFunds
	}
	change := totalNative - fee

	changeScript, err := w.changeScript(
		opts.ChangeAddress, opts.ChangeDerivationPath,
	)
	if err != nil {
		return nil, err
	}

	unsignedTx := wire.NewMsgTx(2)
	selected := append(selectedAssets, selectedNative...)
	for _, u := range selected {
		input, _, _ := u.Parse()
		unsignedTx.AddTxIn(input)
	}
	for i, t := range opts.Transfers {
		for _, r := range t.Recipients {
			script, _ := OutputScriptForAddress(r.Address, w.params)
			unsignedTx.AddTxOut(wire.NewTxOut(int64(r.Amount), script))
		}
		// asset change is never folded into fees, that would burn units
		if assetChanges[i] > 0 {
			unsignedTx.AddTxOut(wire.NewTxOut(int64(assetChanges[i]), changeScript))
		}
	}
	nullDataScript, err := txscript.NullDataScript(opts.AssetPayload)
	if err != nil {
		return nil, err
	}
	unsignedTx.AddTxOut(wire.NewTxOut(0, nullDataScript))
	if change > DustLimit {
		unsignedTx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	} else {
		fee += change
		change = 0
	}

	ptx, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		return nil, err
	}
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return nil, err
	}
	for i, u := range selected {
		_, prevout, _ := u.Parse()
		if err := updater.AddInWitnessUtxo(prevout, i); err != nil {
			return nil, err
		}
		if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
			return nil, err
		}
	}

	psbtBase64, err := ptx.B64Encode()
	if err != nil {
		return nil, err
	}

	return &BuildTransactionResult{
		PsbtBase64:    psbtBase64,
		SelectedUtxos: selected,
		Fee:           fee,
		Change:        change,
	}, nil
}

// DeriveChangeAddressForPath derives the change address of the given
// relative derivation path, ie. in the form "account'/1/index".
func (w *Wallet) DeriveChangeAddressForPath(path string) (string, error) {
	derivationPath, err := ParseDerivationPath(path)
	if err != nil {
		return "", err
	}
	if err := checkDerivationPath(derivationPath); err != nil {
		return "", err
	}
	_, pubkey, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		DerivationPath: path,
	})
	if err != nil {
		return "", err
	}
	return AddressFromPubKey(pubkey, w.params)
}

func (w *Wallet) changeScript(address, derivationPath string) ([]byte, error) {
	if len(address) <= 0 {
		derived, err := w.DeriveChangeAddressForPath(derivationPath)
		if err != nil {
			return nil, err
		}
		address = derived
	}
	script, err := OutputScriptForAddress(address, w.params)
	if err != nil {
		return nil, ErrInvalidChangeAddress
	}
	return script, nil
}

func (w *Wallet) feeForAssetSelection(
	numIns, numAssetOuts int, opts BuildAssetTransactionOpts,
) uint64 {
	inTypes := make([]int, 0, numIns)
	for i := 0; i < numIns; i++ {
		inTypes = append(inTypes, P2WPKH)
	}
	// asset outputs, the commitment and the expected native change output
	outTypes := make([]int, 0, numAssetOuts+2)
	for i := 0; i < numAssetOuts+1; i++ {
		outTypes = append(outTypes, P2WPKH)
	}
	outTypes = append(outTypes, OPRETURN)
	outAuxSizes := []int{2 + len(opts.AssetPayload)}

	txSize := EstimateTxSize(inTypes, nil, outTypes, outAuxSizes)
	return EstimateFeeAmount(txSize, opts.SatsPerByte)
}

func (w *Wallet) feeForSelection(numIns int, opts BuildTransactionOpts) uint64 {
	inTypes := make([]int, 0, numIns)
	for i := 0; i < numIns; i++ {
		inTypes = append(inTypes, P2WPKH)
	}
	// recipient outputs plus the expected change output
	outTypes := make([]int, 0, len(opts.Recipients)+2)
	outAuxSizes := make([]int, 0, 1)
	for range opts.Recipients {
		outTypes = append(outTypes, P2WPKH)
	}
	if len(opts.AssetPayload) > 0 {
		outTypes = append(outTypes, OPRETURN)
		// opcode + push + payload
		outAuxSizes = append(outAuxSizes, 2+len(opts.AssetPayload))
	}
	outTypes = append(outTypes, P2WPKH)

	txSize := EstimateTxSize(inTypes, nil, outTypes, outAuxSizes)
	return EstimateFeeAmount(txSize, opts.SatsPerByte)
}
