package transactionutil

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	ptx := newSignedPacket(t)

	envelope, err := FromPacket(ptx, `{"asset":"native"}`)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotEmpty(t, envelope.Psbt)

	raw, err := envelope.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, raw, `"psbt"`)
	assert.Contains(t, raw, `"assets"`)

	parsed, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, envelope.Psbt, parsed.Psbt)
	assert.Equal(t, envelope.Assets, parsed.Assets)

	decoded, err := parsed.ToPacket()
	if err != nil {
		t.Fatal(err)
	}
	reEncoded, err := decoded.B64Encode()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, envelope.Psbt, reEncoded)
}

func TestEnvelopeWithoutAssets(t *testing.T) {
	envelope := NewEnvelope("cHNidP8BAAoCAAAAAAAAAAAAAAAA", "")
	raw, err := envelope.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	assert.NotContains(t, raw, "assets")

	parsed, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, parsed.Assets)
}

func TestFailingParseEnvelope(t *testing.T) {
	tests := []struct {
		raw string
		err error
	}{
		{"not a json payload", ErrInvalidEnvelope},
		{`{"assets":"{}"}`, ErrMissingPsbt},
		{`{"psbt":"   "}`, ErrMissingPsbt},
	}

	for _, tt := range tests {
		_, err := ParseEnvelope(tt.raw)
		assert.Equal(t, tt.err, err)
	}
}

func TestFailingToPacket(t *testing.T) {
	var nilEnvelope *Envelope
	_, err := nilEnvelope.ToPacket()
	assert.Equal(t, ErrMissingPsbt, err)

	_, err = (&Envelope{}).ToPacket()
	assert.Equal(t, ErrMissingPsbt, err)

	_, err = (&Envelope{Psbt: "not a base64 psbt"}).ToPacket()
	assert.Error(t, err)
}

func TestFinalizeAndExtractTransaction(t *testing.T) {
	ptx := newSignedPacket(t)
	psbtBase64, err := ptx.B64Encode()
	if err != nil {
		t.Fatal(err)
	}

	txHex, txid, err := FinalizeAndExtractTransaction(
		FinalizeAndExtractTransactionOpts{
			PsbtBase64: psbtBase64,
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotEmpty(t, txHex)
	assert.NotEmpty(t, txid)

	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		t.Fatal(err)
	}
	finalTx := &wire.MsgTx{}
	if err := finalTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, txid, finalTx.TxHash().String())
	assert.Len(t, finalTx.TxIn[0].Witness, 2)
}

func TestFailingFinalizeAndExtractTransaction(t *testing.T) {
	_, _, err := FinalizeAndExtractTransaction(
		FinalizeAndExtractTransactionOpts{
			PsbtBase64: "not a base64 psbt",
		},
	)
	assert.Error(t, err)

	unsigned := newUnsignedPacket(t)
	psbtBase64, err := unsigned.B64Encode()
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = FinalizeAndExtractTransaction(
		FinalizeAndExtractTransactionOpts{
			PsbtBase64: psbtBase64,
		},
	)
	assert.Error(t, err)
}

func newUnsignedPacket(t *testing.T) *psbt.Packet {
	t.Helper()

	_, script := testKeyAndScript(t)
	prevHash, err := chainhash.NewHash(bytes.Repeat([]byte{0xaa}, 32))
	if err != nil {
		t.Fatal(err)
	}

	unsignedTx := wire.NewMsgTx(2)
	unsignedTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, 0), nil, nil))
	unsignedTx.AddTxOut(wire.NewTxOut(99000, script))

	ptx, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		t.Fatal(err)
	}
	ptx.Inputs[0].WitnessUtxo = wire.NewTxOut(100000, script)
	ptx.Inputs[0].SighashType = txscript.SigHashAll
	return ptx
}

func newSignedPacket(t *testing.T) *psbt.Packet {
	t.Helper()

	ptx := newUnsignedPacket(t)
	prvkey, script := testKeyAndScript(t)
	unsignedTx := ptx.UnsignedTx

	fetcher := txscript.NewCannedPrevOutputFetcher(script, 100000)
	sigHashes := txscript.NewTxSigHashes(unsignedTx, fetcher)
	sigHash, err := txscript.CalcWitnessSigHash(
		script, sigHashes, txscript.SigHashAll, unsignedTx, 0, 100000,
	)
	if err != nil {
		t.Fatal(err)
	}

	sig := ecdsa.Sign(prvkey, sigHash)
	ptx.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{
			PubKey:    prvkey.PubKey().SerializeCompressed(),
			Signature: append(sig.Serialize(), byte(txscript.SigHashAll)),
		},
	}
	return ptx
}

func testKeyAndScript(t *testing.T) (*btcec.PrivateKey, []byte) {
	t.Helper()

	prvkey, pubkey := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x01}, 32))
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(pubkey.SerializeCompressed())).
		Script()
	if err != nil {
		t.Fatal(err)
	}
	return prvkey, script
}
