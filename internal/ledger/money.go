package ledger

import "math"

// Money is an amount of value in paise. Every monetary quantity in the
// system is an integer paise count; rupee formatting happens only at the
// API boundary.
type Money int64

// Add returns m+other, failing with ErrAmountOverflow when the sum does
// not fit in int64.
func (m Money) Add(other Money) (Money, error) {
	sum := m + other
	if (other > 0 && sum < m) || (other < 0 && sum > m) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns m-other with the same overflow check as Add.
func (m Money) Sub(other Money) (Money, error) {
	if other == math.MinInt64 {
		return 0, ErrAmountOverflow
	}
	return m.Add(-other)
}

func (m Money) IsPositive() bool { return m > 0 }

func (m Money) IsNegative() bool { return m < 0 }

func (m Money) IsZero() bool { return m == 0 }
