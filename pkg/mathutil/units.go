package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromSatoshis converts an amount in satoshis to its coin denomination with
// precision 8.
func FromSatoshis(sats uint64) decimal.Decimal {
	return DivDecimal(
		decimal.NewFromBigInt(new(big.Int).SetUint64(sats), 0),
		BigOneDecimal,
	)
}

// ToSatoshis converts a coin denominated amount to satoshis, truncating
// anything below the 8th decimal place.
func ToSatoshis(coins decimal.Decimal) uint64 {
	return MulDecimal(coins, BigOneDecimal).Truncate(0).BigInt().Uint64()
}

// KilobyteToByteRate converts a fee rate expressed in satoshis per kilobyte
// of virtual size to satoshis per virtual byte.
func KilobyteToByteRate(satsPerKilobyte float64) float64 {
	rate, _ := decimal.NewFromFloat(satsPerKilobyte).
		Div(OneThousandDecimal).
		Float64()
	return rate
}

// FromWei converts an amount in wei to its coin denomination with precision
// 18. The conversion is a pure exponent shift, no precision is lost.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// ToWei converts a coin denominated amount to wei, truncating anything below
// the 18th decimal place.
func ToWei(coins decimal.Decimal) *big.Int {
	return coins.Mul(decimal.New(1, 18)).Truncate(0).BigInt()
}
