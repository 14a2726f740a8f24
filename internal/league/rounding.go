package league

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how fractional player contributions are treated.
type RoundingMode string

const (
	// RoundExact keeps full decimal precision.
	RoundExact RoundingMode = "exact"
	// RoundHalfUp rounds half away from zero at Places decimal places.
	RoundHalfUp RoundingMode = "half_up"
)

// RoundingPolicy is configured per league. The zero value is exact.
type RoundingPolicy struct {
	Mode   RoundingMode `json:"mode"`
	Places int32        `json:"places"`
}

// Validate checks the policy is usable.
func (p RoundingPolicy) Validate() error {
	switch p.Mode {
	case "", RoundExact:
		return nil
	case RoundHalfUp:
		if p.Places < 0 || p.Places > 6 {
			return fmt.Errorf("rounding places %d out of range [0,6]", p.Places)
		}
		return nil
	default:
		return fmt.Errorf("unknown rounding mode %q", p.Mode)
	}
}

// Apply rounds d according to the policy.
func (p RoundingPolicy) Apply(d decimal.Decimal) decimal.Decimal {
	if p.Mode == RoundHalfUp {
		// decimal.Round rounds half away from zero.
		return d.Round(p.Places)
	}
	return d
}
