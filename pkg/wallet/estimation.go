package wallet

import (
	"github.com/shopspring/decimal"
)

// Script types of transaction inputs and outputs, according to the Bitcoin
// standard ones.
const (
	P2PK = iota
	P2PKH
	P2MS
	P2SH_P2WPKH
	P2SH_P2WSH
	P2WPKH
	P2WSH
	OPRETURN
)

// EstimateTxSize makes an estimation of the virtual size of a transaction
// for which is required to specify the type of the inputs and outputs
// according to those of the Bitcoin standard (P2PK, P2PKH, P2MS,
// P2SH(P2WPKH), P2SH(P2WSH), P2WPKH, P2WSH, OP_RETURN).
// Inputs spending a script type with a witness of unknown size (P2WSH,
// P2SH(P2WSH)) and outputs with a free form script (P2MS, OP_RETURN) must
// pass their sizes as auxiliary slices in accordance.
func EstimateTxSize(
	inScriptTypes, inAuxiliaryWitnessSize,
	outScriptTypes, outAuxiliaryScriptSize []int,
) int {
	baseSize := calcTxSize(
		false,
		inScriptTypes, inAuxiliaryWitnessSize,
		outScriptTypes, outAuxiliaryScriptSize,
	)
	totalSize := calcTxSize(
		true,
		inScriptTypes, inAuxiliaryWitnessSize,
		outScriptTypes, outAuxiliaryScriptSize,
	)

	weight := baseSize*3 + totalSize
	vsize := (weight + 3) / 4

	return vsize
}

// EstimateFeeAmount returns the fee amount in satoshis for a transaction of
// the given virtual size at the given rate expressed in sats per virtual
// byte. The result is rounded up so that the effective rate never falls
// below the requested one.
func EstimateFeeAmount(txSize int, satsPerByte float64) uint64 {
	fee := decimal.NewFromFloat(satsPerByte).
		Mul(decimal.NewFromInt(int64(txSize))).
		Ceil()
	return uint64(fee.IntPart())
}

func calcTxSize(
	withWitness bool,
	inScriptTypes, inAuxiliaryWitnessSize,
	outScriptTypes, outAuxiliaryScriptSize []int,
) int {
	txSize := calcTxBaseSize(
		inScriptTypes, outScriptTypes, outAuxiliaryScriptSize,
	)
	if withWitness {
		// segwit marker + flag
		txSize += 2
		txSize += calcTxWitnessSize(inScriptTypes, inAuxiliaryWitnessSize)
	}
	return txSize
}

var (
	scriptSigSizeByScriptType = map[int]int{
		P2PK:        140, // len + opcode + sig + opcode + pubkey uncompressed
		P2PKH:       108, // len + opcode + sig + opcode + pubkey
		P2SH_P2WPKH: 23,  // len + p2wpkh script
		P2SH_P2WSH:  35,  // len + p2wsh script
		P2WPKH:      1,   // no scriptsig, still len is serialized
		P2WSH:       1,   // no scriptsig
	}
	scriptPubKeySizeByScriptType = map[int]int{
		P2PK:        67, // len + pubkey uncompressed + opcode
		P2PKH:       26, // len + opcodes (3) + hash(pubkey) + opcodes (2)
		P2SH_P2WPKH: 24, // len + opcodes (2) + hash(script) + opcode
		P2SH_P2WSH:  24, // len + opcodes (2) + hash(script) + opcode
		P2WPKH:      23, // len + opcodes (2) + hash(script)
		P2WSH:       35, // len + opcodes (2) + hash(script)
	}
)

func calcTxBaseSize(
	inScriptTypes, outScriptTypes, outAuxiliaryScriptSize []int,
) int {
	// hash + index + sequence
	inBaseSize := 40
	insSize := 0
	for _, scriptType := range inScriptTypes {
		scriptSize, ok := scriptSigSizeByScriptType[scriptType]
		if !ok {
			// inputs spending non standard scripts are accounted with an
			// empty scriptsig, their cost lives in the witness
			scriptSize = 1
		}
		insSize += inBaseSize + scriptSize
	}

	// 8 bytes value
	outBaseSize := 8
	outsSize := 0
	auxCount := 0
	for _, scriptType := range outScriptTypes {
		scriptSize, ok := scriptPubKeySizeByScriptType[scriptType]
		if !ok {
			scriptLen := outAuxiliaryScriptSize[auxCount]
			auxCount++
			scriptSize = varIntSerializeSize(uint64(scriptLen)) + scriptLen
		}
		outsSize += outBaseSize + scriptSize
	}

	// version + locktime
	return 8 +
		varIntSerializeSize(uint64(len(inScriptTypes))) +
		varIntSerializeSize(uint64(len(outScriptTypes))) +
		insSize + outsSize
}

func calcTxWitnessSize(inScriptTypes, inAuxiliaryWitnessSize []int) int {
	insSize := 0
	auxCount := 0
	for _, scriptType := range inScriptTypes {
		switch scriptType {
		case P2SH_P2WPKH, P2WPKH:
			// item count + len + sig + len + pubkey
			insSize += 1 + 1 + 72 + 1 + 33
		case P2SH_P2WSH, P2WSH:
			insSize += inAuxiliaryWitnessSize[auxCount]
			auxCount++
		default:
			// non witness inputs still serialize an empty witness
			insSize++
		}
	}
	return insSize
}
