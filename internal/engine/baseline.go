package engine

import "github.com/shopspring/decimal"

// AverageVolume computes the arithmetic mean volume across the given history.
// The boolean is false when the history is empty: no baseline exists, which
// is distinct from a baseline of zero.
func AverageVolume(history []Sample) (decimal.Decimal, bool) {
	if len(history) == 0 {
		return decimal.Decimal{}, false
	}

	sum := decimal.Zero
	for _, s := range history {
		sum = sum.Add(s.Volume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(history)))), true
}
