package service

import "time"

// LoanPolicy is the single authoritative set of lending rules.
type LoanPolicy struct {
	LoanPeriod           time.Duration
	DefaultExtensionDays int
	MaxExtensionDays     int
	MaxExtensions        int
	ReservationTTL       time.Duration
}

func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		LoanPeriod:           30 * 24 * time.Hour,
		DefaultExtensionDays: 7,
		MaxExtensionDays:     30,
		MaxExtensions:        2,
		ReservationTTL:       14 * 24 * time.Hour,
	}
}

// withDefaults fills zero fields from DefaultLoanPolicy.
func (p LoanPolicy) withDefaults() LoanPolicy {
	def := DefaultLoanPolicy()
	if p.LoanPeriod <= 0 {
		p.LoanPeriod = def.LoanPeriod
	}
	if p.DefaultExtensionDays <= 0 {
		p.DefaultExtensionDays = def.DefaultExtensionDays
	}
	if p.MaxExtensionDays <= 0 {
		p.MaxExtensionDays = def.MaxExtensionDays
	}
	if p.MaxExtensions <= 0 {
		p.MaxExtensions = def.MaxExtensions
	}
	if p.ReservationTTL <= 0 {
		p.ReservationTTL = def.ReservationTTL
	}
	return p
}

// extensionDays resolves the requested extension.  Absent means the
// default; a present value must lie in [1, MaxExtensionDays].
func (p LoanPolicy) extensionDays(requested *int) (int, error) {
	if requested == nil {
		return p.DefaultExtensionDays, nil
	}
	if d := *requested; d < 1 || d > p.MaxExtensionDays {
		return 0, invalid("additionalDays must be between 1 and %d", p.MaxExtensionDays)
	}
	return *requested, nil
}
