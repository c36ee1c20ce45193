package wallet

import (
	"bytes"
	"math"

	"github.com/btcsuite/btcd/wire"
	"github.com/vulpemventures/go-bip39"
)

func generateMnemonic(entropySize int) (string, error) {
	entropy, err := bip39.NewEntropy(entropySize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func generateSeedFromMnemonic(mnemonic string) []byte {
	return bip39.NewSeed(mnemonic, "")
}

func isMnemonicValid(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

func anyOutputWithScript(outputs []*wire.TxOut, script []byte) bool {
	return outputIndexByScript(outputs, script) >= 0
}

func outputIndexByScript(outputs []*wire.TxOut, script []byte) int {
	for i, out := range outputs {
		if bytes.Equal(out.PkScript, script) {
			return i
		}
	}
	return -1
}

func varIntSerializeSize(val uint64) int {
	// The value is small enough to be represented by itself, so it's
	// just 1 byte.
	if val < 0xfd {
		return 1
	}

	// Discriminant 1 byte plus 2 bytes for the uint16.
	if val <= math.MaxUint16 {
		return 3
	}

	// Discriminant 1 byte plus 4 bytes for the uint32.
	if val <= math.MaxUint32 {
		return 5
	}

	// Discriminant 1 byte plus 8 bytes for the uint64.
	return 9
}
