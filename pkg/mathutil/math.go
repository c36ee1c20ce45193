package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	//BigOne represents a single unit of a coin with precision 8
	BigOne = uint64(math.Pow10(8))
	//BigOneDecimal represents a single unit of a coin with precision 8 as decimal.Decimal
	BigOneDecimal = decimal.NewFromInt(int64(BigOne))
	//OneThousandDecimal is the scale factor between kilobyte and byte fee rates
	OneThousandDecimal = decimal.NewFromInt(1000)
)

func init() {
	decimal.DivisionPrecision = 8
}

// MulDecimal takes two decimal.Decimal numbers and multiply them x * y and returns the result as decimal.Decimal
func MulDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Mul(Y)
	return
}

// DivDecimal takes two decimal.Decimal numbers and divides them x / y and returns the result as decimal.Decimal
func DivDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Div(Y)
	return
}
