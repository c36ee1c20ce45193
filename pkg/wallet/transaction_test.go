package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

var testUtxoHashes = []string{
	"0000000000000000000000000000000000000000000000000000000000000001",
	"0000000000000000000000000000000000000000000000000000000000000002",
	"0000000000000000000000000000000000000000000000000000000000000003",
}

// testUnspents returns unspents of the given values locked to the wallet
// first receiving script.
func testUnspents(t *testing.T, w *Wallet, values ...uint64) []explorer.Utxo {
	addr, err := w.DeriveReceiveAddress(DeriveAddressOpts{Account: 0, Index: 0})
	if err != nil {
		t.Fatal(err)
	}
	script, err := OutputScriptForAddress(addr, w.Params())
	if err != nil {
		t.Fatal(err)
	}

	unspents := make([]explorer.Utxo, 0, len(values))
	for i, value := range values {
		unspents = append(unspents, explorer.NewWitnessUtxo(
			testUtxoHashes[i], uint32(i), value, "", script, true,
		))
	}
	return unspents
}

func testRecipient(t *testing.T, w *Wallet, amount uint64) Recipient {
	addr, err := w.DeriveReceiveAddress(DeriveAddressOpts{Account: 0, Index: 1})
	if err != nil {
		t.Fatal(err)
	}
	return Recipient{Address: addr, Amount: amount}
}

func TestCreateTx(t *testing.T) {
	w := newTestWallet(t)

	psbtBase64, err := w.CreateTx()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, true, len(psbtBase64) > 0)

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(psbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, len(ptx.Inputs))
	assert.Equal(t, 0, len(ptx.Outputs))
}

func TestBuildTransaction(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000, 100000)

	result, err := w.BuildTransaction(BuildTransactionOpts{
		Unspents:             unspents,
		Recipients:           []Recipient{testRecipient(t, w, 60000)},
		ChangeDerivationPath: "0'/1/0",
		SatsPerByte:          1,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 1, len(result.SelectedUtxos))
	assert.Equal(t, true, result.Fee > 0)
	assert.Equal(t, result.SelectedUtxos[0].Value()-60000-result.Fee, result.Change)

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(result.SelectedUtxos), len(ptx.Inputs))
	// recipient output plus change output
	assert.Equal(t, 2, len(ptx.UnsignedTx.TxOut))
	assert.Equal(t, int64(60000), ptx.UnsignedTx.TxOut[0].Value)
	assert.Equal(t, int64(result.Change), ptx.UnsignedTx.TxOut[1].Value)
	for _, in := range ptx.Inputs {
		assert.NotNil(t, in.WitnessUtxo)
		assert.Equal(t, txscript.SigHashAll, in.SighashType)
	}
}

func TestBuildTransactionSubtractFee(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000)

	result, err := w.BuildTransaction(BuildTransactionOpts{
		Unspents:                      unspents,
		Recipients:                    []Recipient{testRecipient(t, w, 100000)},
		ChangeDerivationPath:          "0'/1/0",
		SatsPerByte:                   1,
		SubtractFeeFromFirstRecipient: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, true, result.Fee > 0)
	assert.Equal(t, uint64(0), result.Change)

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(ptx.UnsignedTx.TxOut))
	assert.Equal(t, int64(100000-result.Fee), ptx.UnsignedTx.TxOut[0].Value)
}

func TestBuildTransactionWithAssetPayload(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000)
	payload := []byte("7a8f19f6c5f1d42a9cf8e3b07615a3e1")

	result, err := w.BuildTransaction(BuildTransactionOpts{
		Unspents:             unspents,
		Recipients:           []Recipient{testRecipient(t, w, 60000)},
		ChangeDerivationPath: "0'/1/0",
		SatsPerByte:          1,
		AssetPayload:         payload,
	})
	if err != nil {
		t.Fatal(err)
	}

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	// recipient, null data commitment and change
	assert.Equal(t, 3, len(ptx.UnsignedTx.TxOut))
	nullDataOut := ptx.UnsignedTx.TxOut[1]
	assert.Equal(t, int64(0), nullDataOut.Value)
	assert.Equal(t, byte(txscript.OP_RETURN), nullDataOut.PkScript[0])
}

func TestBuildTransactionDustChange(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000)

	// amount calibrated so that the change would be below the dust limit
	result, err := w.BuildTransaction(BuildTransactionOpts{
		Unspents:             unspents,
		Recipients:           []Recipient{testRecipient(t, w, 99600)},
		ChangeDerivationPath: "0'/1/0",
		SatsPerByte:          1,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, uint64(0), result.Change)

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	// the dust is folded into fees instead of producing a change output
	assert.Equal(t, 1, len(ptx.UnsignedTx.TxOut))
	assert.Equal(t, uint64(100000-99600), result.Fee)
}

func TestBuildTransactionWithChangeAddress(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000)
	changeAddr, err := w.DeriveChangeAddress(DeriveAddressOpts{Account: 0, Index: 7})
	if err != nil {
		t.Fatal(err)
	}
	changeScript, err := OutputScriptForAddress(changeAddr, w.Params())
	if err != nil {
		t.Fatal(err)
	}

	result, err := w.BuildTransaction(BuildTransactionOpts{
		Unspents:      unspents,
		Recipients:    []Recipient{testRecipient(t, w, 60000)},
		ChangeAddress: changeAddr,
		SatsPerByte:   1,
	})
	if err != nil {
		t.Fatal(err)
	}

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, len(ptx.UnsignedTx.TxOut))
	assert.Equal(t, changeScript, ptx.UnsignedTx.TxOut[1].PkScript)
}

func TestBuildAssetTransaction(t *testing.T) {
	w := newTestWallet(t)
	asset := "7a8f19f6c5f1d42a9cf8e3b07615a3e17a8f19f6c5f1d42a9cf8e3b07615a3e1"
	unspents := testUnspents(t, w, 100000)
	unspents = append(unspents, testAssetUnspents(t, w, asset, 5000)...)
	payload := []byte(`{"` + asset + `":[{"amount":2000}]}`)

	result, err := w.BuildAssetTransaction(BuildAssetTransactionOpts{
		Unspents: unspents,
		Transfers: []AssetTransfer{{
			Asset:      asset,
			Recipients: []Recipient{testRecipient(t, w, 2000)},
		}},
		ChangeDerivationPath: "0'/1/0",
		SatsPerByte:          1,
		AssetPayload:         payload,
	})
	if err != nil {
		t.Fatal(err)
	}

	// the asset unspent plus a native one funding the fees
	assert.Equal(t, 2, len(result.SelectedUtxos))
	assert.Equal(t, asset, result.SelectedUtxos[0].Asset())
	assert.Equal(t, "", result.SelectedUtxos[1].Asset())
	assert.Equal(t, true, result.Fee > 0)

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(result.PsbtBase64), true)
	if err != nil {
		t.Fatal(err)
	}
	// asset recipient, asset change, commitment and native change
	assert.Equal(t, 4, len(ptx.UnsignedTx.TxOut))
	assert.Equal(t, int64(2000), ptx.UnsignedTx.TxOut[0].Value)
	assert.Equal(t, int64(3000), ptx.UnsignedTx.TxOut[1].Value)
	nullDataOut := ptx.UnsignedTx.TxOut[2]
	assert.Equal(t, int64(0), nullDataOut.Value)
	assert.Equal(t, byte(txscript.OP_RETURN), nullDataOut.PkScript[0])
	assert.Equal(t, int64(result.Change), ptx.UnsignedTx.TxOut[3].Value)
}

func TestFailingBuildAssetTransaction(t *testing.T) {
	w := newTestWallet(t)
	asset := "7a8f19f6c5f1d42a9cf8e3b07615a3e17a8f19f6c5f1d42a9cf8e3b07615a3e1"
	unspents := testUnspents(t, w, 100000)
	unspents = append(unspents, testAssetUnspents(t, w, asset, 5000)...)
	recipient := testRecipient(t, w, 2000)
	payload := []byte(`{}`)

	tests := []struct {
		name string
		opts BuildAssetTransactionOpts
		err  error
	}{
		{
			name: "empty transfers",
			opts: BuildAssetTransactionOpts{
				Unspents:             unspents,
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
				AssetPayload:         payload,
			},
			err: ErrEmptyAllocations,
		},
		{
			name: "missing asset id",
			opts: BuildAssetTransactionOpts{
				Unspents: unspents,
				Transfers: []AssetTransfer{
					{Recipients: []Recipient{recipient}},
				},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
				AssetPayload:         payload,
			},
			err: ErrNullAssetId,
		},
		{
			name: "missing asset recipients",
			opts: BuildAssetTransactionOpts{
				Unspents:             unspents,
				Transfers:            []AssetTransfer{{Asset: asset}},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
				AssetPayload:         payload,
			},
			err: ErrNullRecipients,
		},
		{
			name: "missing asset payload",
			opts: BuildAssetTransactionOpts{
				Unspents: unspents,
				Transfers: []AssetTransfer{
					{Asset: asset, Recipients: []Recipient{recipient}},
				},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrNullAssetPayload,
		},
	}
	for _, tt := range tests {
		_, err := w.BuildAssetTransaction(tt.opts)
		assert.Equal(t, tt.err, err, tt.name)
	}

	// asset allocation not covered by the tagged unspents
	_, err := w.BuildAssetTransaction(BuildAssetTransactionOpts{
		Unspents: unspents,
		Transfers: []AssetTransfer{
			{Asset: asset, Recipients: []Recipient{testRecipient(t, w, 9000)}},
		},
		ChangeDerivationPath: "0'/1/0",
		SatsPerByte:          1,
		AssetPayload:         payload,
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, true, strings.Contains(err.Error(), asset))
}

// testAssetUnspents returns unspents tagged with the given asset id, locked
// to the wallet first receiving script.
func testAssetUnspents(
	t *testing.T, w *Wallet, asset string, values ...uint64,
) []explorer.Utxo {
	addr, err := w.DeriveReceiveAddress(DeriveAddressOpts{Account: 0, Index: 0})
	if err != nil {
		t.Fatal(err)
	}
	script, err := OutputScriptForAddress(addr, w.Params())
	if err != nil {
		t.Fatal(err)
	}

	unspents := make([]explorer.Utxo, 0, len(values))
	for i, value := range values {
		unspents = append(unspents, explorer.NewWitnessUtxo(
			testUtxoHashes[len(testUtxoHashes)-1-i], uint32(i), value, asset,
			script, true,
		))
	}
	return unspents
}

func TestFailingBuildTransaction(t *testing.T) {
	w := newTestWallet(t)
	unspents := testUnspents(t, w, 100000, 100000)
	recipient := testRecipient(t, w, 60000)

	tests := []struct {
		name string
		opts BuildTransactionOpts
		err  error
	}{
		{
			name: "empty unspents",
			opts: BuildTransactionOpts{
				Recipients:           []Recipient{recipient},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrEmptyUnspents,
		},
		{
			name: "empty recipients",
			opts: BuildTransactionOpts{
				Unspents:             unspents,
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrNullRecipients,
		},
		{
			name: "zero output amount",
			opts: BuildTransactionOpts{
				Unspents:             unspents,
				Recipients:           []Recipient{{Address: recipient.Address}},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrZeroOutputAmount,
		},
		{
			name: "invalid recipient address",
			opts: BuildTransactionOpts{
				Unspents:             unspents,
				Recipients:           []Recipient{{Address: "not an address", Amount: 60000}},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrInvalidRecipientAddress,
		},
		{
			name: "zero fee rate",
			opts: BuildTransactionOpts{
				Unspents:             unspents,
				Recipients:           []Recipient{recipient},
				ChangeDerivationPath: "0'/1/0",
			},
			err: ErrZeroFeeRate,
		},
		{
			name: "missing change derivation path",
			opts: BuildTransactionOpts{
				Unspents:    unspents,
				Recipients:  []Recipient{recipient},
				SatsPerByte: 1,
			},
			err: ErrNullChangeDerivationPath,
		},
		{
			name: "insufficient funds",
			opts: BuildTransactionOpts{
				Unspents:             unspents,
				Recipients:           []Recipient{testRecipient(t, w, 250000)},
				ChangeDerivationPath: "0'/1/0",
				SatsPerByte:          1,
			},
			err: ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		_, err := w.BuildTransaction(tt.opts)
		assert.Equal(t, tt.err, err, tt.name)
	}
}
