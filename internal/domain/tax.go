package domain

import "fmt"

// GainTerm classifies a realized gain by holding period
type GainTerm string

const (
	GainShortTerm GainTerm = "SHORT_TERM"
	GainLongTerm  GainTerm = "LONG_TERM"
	// GainQualifiedDividend is carried in the schedule for completeness;
	// the optimizer itself only realizes short and long term gains
	GainQualifiedDividend GainTerm = "QUALIFIED_DIVIDEND"
)

// LongTermHoldingDays is the minimum holding period for long-term treatment
const LongTermHoldingDays = 365

// TaxRate holds the rate components applied to one gain classification
type TaxRate struct {
	Federal       float64 `json:"federal"`
	State         float64 `json:"state"`
	Total         float64 `json:"total"`
	OverrideTotal bool    `json:"override_total,omitempty"` // When false, Total must equal Federal + State
}

// TaxRateSchedule maps gain classifications to their applicable rates
type TaxRateSchedule map[GainTerm]TaxRate

// Rate returns the total rate for a gain term, zero when the term is absent
func (s TaxRateSchedule) Rate(term GainTerm) float64 {
	return s[term].Total
}

// Validate checks rate consistency. Total must equal the sum of its
// components unless the caller explicitly overrides it.
func (s TaxRateSchedule) Validate() error {
	for term, rate := range s {
		if rate.Federal < 0 || rate.State < 0 || rate.Total < 0 {
			return fmt.Errorf("tax rate for %s must not be negative", term)
		}
		if !rate.OverrideTotal {
			if diff := rate.Total - (rate.Federal + rate.State); diff > 1e-9 || diff < -1e-9 {
				return fmt.Errorf("tax rate for %s: total %.4f does not equal federal %.4f + state %.4f", term, rate.Total, rate.Federal, rate.State)
			}
		}
	}
	return nil
}

// DefaultTaxRates returns a schedule with typical US marginal rates.
// Callers with real rate data should supply their own schedule.
func DefaultTaxRates() TaxRateSchedule {
	return TaxRateSchedule{
		GainShortTerm:         {Federal: 0.32, State: 0.05, Total: 0.37},
		GainLongTerm:          {Federal: 0.15, State: 0.05, Total: 0.20},
		GainQualifiedDividend: {Federal: 0.15, State: 0.05, Total: 0.20},
	}
}
