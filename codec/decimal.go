package codec

import (
	"math"

	fastwire "github.com/reoring/fastwire"
)

// DecimalFloat64 returns a Codec between fastwire.Decimal and float64.
// Encoding quantizes to the fixed exponent; scale is the power of ten of
// the smallest representable step (scale -2 means two decimal places).
func DecimalFloat64(scale int32) Codec[fastwire.Decimal, float64] {
	return decimalFloat{scale: scale}
}

type decimalFloat struct {
	scale int32
}

func (c decimalFloat) Decode(w fastwire.Decimal) (float64, error) {
	return w.Float64(), nil
}

func (c decimalFloat) Encode(d float64) (fastwire.Decimal, error) {
	scaled := d * math.Pow(10, float64(-c.scale))
	mant := math.Round(scaled)
	if math.IsNaN(mant) || math.IsInf(mant, 0) || mant > math.MaxInt64 || mant < math.MinInt64 {
		return fastwire.Decimal{}, fastwire.Issues{
			fastwire.IssueAt("/", fastwire.CodeOverflow, "float64 not representable at this scale"),
		}
	}
	return fastwire.Decimal{Mantissa: int64(mant), Exponent: c.scale}, nil
}
