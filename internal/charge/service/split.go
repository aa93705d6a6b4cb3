package service

import "github.com/shopspring/decimal"

var cent = decimal.New(1, -2)

// Split divides total into n installments. The first n-1 parts are
// total/n rounded half-up to cents and the last takes the remainder, so
// the parts always add back to total. When rounding up would leave the
// last part non-positive the leading parts are truncated instead.
func Split(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 1 {
		return []decimal.Decimal{total.Round(2)}
	}
	total = total.Round(2)
	count := decimal.NewFromInt(int64(n))
	part := total.Div(count).Round(2)
	last := total.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))
	if !last.IsPositive() {
		part = total.Div(count).Truncate(2)
		last = total.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))
	}

	parts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		parts[i] = part
	}
	parts[n-1] = last
	return parts
}

// MinimumTotal is the smallest amount that splits into n non-zero parts.
func MinimumTotal(n int) decimal.Decimal {
	return cent.Mul(decimal.NewFromInt(int64(n)))
}
