package explorer

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type witnessUtxo struct {
	UHash      string
	UIndex     uint32
	UValue     uint64
	UAsset     string
	UScript    []byte
	UConfirmed bool
}

// NewWitnessUtxo returns a Utxo for the given outpoint. An empty asset tag
// marks a plain native output.
func NewWitnessUtxo(
	hash string,
	index uint32,
	value uint64,
	asset string,
	script []byte,
	confirmed bool,
) Utxo {
	return witnessUtxo{
		UHash:      hash,
		UIndex:     index,
		UValue:     value,
		UAsset:     asset,
		UScript:    script,
		UConfirmed: confirmed,
	}
}

func (wu witnessUtxo) Hash() string {
	return wu.UHash
}

func (wu witnessUtxo) Index() uint32 {
	return wu.UIndex
}

func (wu witnessUtxo) Value() uint64 {
	return wu.UValue
}

func (wu witnessUtxo) Asset() string {
	return wu.UAsset
}

func (wu witnessUtxo) Script() []byte {
	return wu.UScript
}

func (wu witnessUtxo) IsConfirmed() bool {
	return wu.UConfirmed
}

// Parse returns the unsigned input spending the utxo along with the
// previous output it refers to.
func (wu witnessUtxo) Parse() (*wire.TxIn, *wire.TxOut, error) {
	txHash, err := chainhash.NewHashFromStr(wu.UHash)
	if err != nil {
		return nil, nil, err
	}
	input := wire.NewTxIn(wire.NewOutPoint(txHash, wu.UIndex), nil, nil)
	prevout := wire.NewTxOut(int64(wu.UValue), wu.UScript)
	return input, prevout, nil
}

// ParseScript is a helper to decode the hex script of an esplora utxo
// payload.
func ParseScript(scriptHex string) ([]byte, error) {
	return hex.DecodeString(scriptHex)
}
