package esplora

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

/**** TRANSACTION ****/

// tx is the implementation of the explorer's Transaction interface
type tx struct {
	TxHash      string
	TxVersion   int
	TxLocktime  int
	TxInputs    []*wire.TxIn
	TxOutputs   []*wire.TxOut
	TxSize      int
	TxWeight    int
	TxConfirmed bool
}

// NewTxFromHex is the factory for a Transaction given its serialization in
// hex format.
func NewTxFromHex(txhex string, confirmed bool) (explorer.Transaction, error) {
	msgTx, err := decodeTx(txhex)
	if err != nil {
		return nil, err
	}

	baseSize := msgTx.SerializeSizeStripped()
	totalSize := msgTx.SerializeSize()
	weight := baseSize*3 + totalSize

	return &tx{
		TxHash:      msgTx.TxHash().String(),
		TxVersion:   int(msgTx.Version),
		TxLocktime:  int(msgTx.LockTime),
		TxInputs:    msgTx.TxIn,
		TxOutputs:   msgTx.TxOut,
		TxSize:      (weight + 3) / 4,
		TxWeight:    weight,
		TxConfirmed: confirmed,
	}, nil
}

func (t *tx) Hash() string {
	return t.TxHash
}

func (t *tx) Version() int {
	return t.TxVersion
}

func (t *tx) Locktime() int {
	return t.TxLocktime
}

func (t *tx) Inputs() []*wire.TxIn {
	return t.TxInputs
}

func (t *tx) Outputs() []*wire.TxOut {
	return t.TxOutputs
}

func (t *tx) Size() int {
	return t.TxSize
}

func (t *tx) Weight() int {
	return t.TxWeight
}

func (t *tx) Confirmed() bool {
	return t.TxConfirmed
}

/**** UTXO ****/

// utxoPayload is the shape of the entries returned by the /address/:addr/utxo
// endpoint. The output script is not part of the payload, it is retrieved
// from the funding transaction.
type utxoPayload struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  uint64 `json:"value"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
}

func parseUtxoList(resp string) ([]utxoPayload, error) {
	payload := make([]utxoPayload, 0)
	if err := json.Unmarshal([]byte(resp), &payload); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}
	return payload, nil
}

func decodeTx(txhex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txhex)
	if err != nil {
		return nil, err
	}
	msgTx := &wire.MsgTx{}
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return msgTx, nil
}
