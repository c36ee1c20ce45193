package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWitnessUtxoParse(t *testing.T) {
	hash := "0e3e2357e806b6cdb1f70b54c3a3a17b6714ee1f0e68bebb44a74b1efd512098"
	script := []byte{
		0x00, 0x14,
		0xc0, 0xce, 0xbc, 0xd6, 0xc3, 0xd3, 0xca, 0x8c, 0x75, 0xdc,
		0x5e, 0xc6, 0x2e, 0xbe, 0x55, 0x33, 0x0e, 0xf9, 0x10, 0xe2,
	}

	utxo := NewWitnessUtxo(hash, 1, 5000, "", script, true)
	assert.Equal(t, hash, utxo.Hash())
	assert.Equal(t, uint32(1), utxo.Index())
	assert.Equal(t, uint64(5000), utxo.Value())
	assert.Equal(t, true, utxo.IsConfirmed())

	input, prevout, err := utxo.Parse()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, hash, input.PreviousOutPoint.Hash.String())
	assert.Equal(t, uint32(1), input.PreviousOutPoint.Index)
	assert.Equal(t, int64(5000), prevout.Value)
	assert.Equal(t, script, prevout.PkScript)
}

func TestFailingWitnessUtxoParse(t *testing.T) {
	utxo := NewWitnessUtxo("not a hash", 0, 1000, "", nil, false)
	_, _, err := utxo.Parse()
	assert.NotNil(t, err)
}
