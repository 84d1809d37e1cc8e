// internal/repository/decimal.go
package repository

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Readings and setpoints are stored as NUMERIC so reports sum without float drift.

func toNullDecimal(v *float64) decimal.NullDecimal {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

func fromNullDecimal(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

// durationToSeconds keeps millisecond precision
func durationToSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Milliseconds()).Shift(-3)
}

func secondsToDuration(s decimal.Decimal) time.Duration {
	return time.Duration(s.Shift(3).Round(0).IntPart()) * time.Millisecond
}
