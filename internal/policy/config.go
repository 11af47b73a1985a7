package policy

import "sort"

// Config is the immutable parameter set every decision component reads.
// Build it once per process (Default, LoadFile, LoadFromPostgres) and share
// it by value; nothing in the engine writes to it.
type Config struct {
	MinFailedAIAttempts           int
	MaxFailedAIAttempts           int
	ManyRecentAIFailuresThreshold int

	HighValueAmountThreshold float64
	MinAIConfidence          float64

	MinCustomerIDLen int
	MaxCustomerIDLen int
	MinOrderIDLen    int
	MaxOrderIDLen    int
	CountryCodeLen   int

	RegulatedCountries  CountrySet
	StrictAuthCountries CountrySet
	SupportedCountries  CountrySet
}

// Default returns the production policy.
func Default() Config {
	return Config{
		MinFailedAIAttempts:           0,
		MaxFailedAIAttempts:           5,
		ManyRecentAIFailuresThreshold: 2,

		HighValueAmountThreshold: 1000.00,
		MinAIConfidence:          0.50,

		MinCustomerIDLen: 6,
		MaxCustomerIDLen: 36,
		MinOrderIDLen:    8,
		MaxOrderIDLen:    32,
		CountryCodeLen:   2,

		RegulatedCountries:  NewCountrySet("DE", "FR"),
		StrictAuthCountries: NewCountrySet("US", "DE"),
		SupportedCountries:  NewCountrySet("DE", "US", "FR", "GB", "IN"),
	}
}

// CountrySet is a read-only set of country codes.
type CountrySet struct {
	codes map[string]struct{}
}

// NewCountrySet builds a set from the given codes.
func NewCountrySet(codes ...string) CountrySet {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return CountrySet{codes: m}
}

// Contains reports whether code is in the set. The zero set contains nothing.
func (s CountrySet) Contains(code string) bool {
	_, ok := s.codes[code]
	return ok
}

// Sorted returns the codes in ascending order.
func (s CountrySet) Sorted() []string {
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
