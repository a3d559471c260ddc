package config

import "time"

// LoanPolicyConfig carries the lending rules.  Durations accept Go syntax
// ("720h"); the day-valued knobs are plain integers.
type LoanPolicyConfig struct {
	LoanPeriod           time.Duration
	DefaultExtensionDays int
	MaxExtensionDays     int
	MaxExtensions        int
	ReservationTTL       time.Duration
}

func LoadLoanPolicy() LoanPolicyConfig {
	return LoanPolicyConfig{
		LoanPeriod:           envDur("LOAN_PERIOD", 30*24*time.Hour),
		DefaultExtensionDays: envInt("LOAN_DEFAULT_EXTENSION_DAYS", 7),
		MaxExtensionDays:     envInt("LOAN_MAX_EXTENSION_DAYS", 30),
		MaxExtensions:        envInt("LOAN_MAX_EXTENSIONS", 2),
		ReservationTTL:       envDur("RESERVATION_TTL", 14*24*time.Hour),
	}
}
