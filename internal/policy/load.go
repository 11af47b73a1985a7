package policy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every policy override variable.
const EnvPrefix = "ORDER_STRATEGY_POLICY_"

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the policy from defaults, an optional YAML file and
// environment overrides, in that order, then validates the result.
// An empty path skips the file.
func Load(path string, lookup LookupFunc) (Config, error) {
	doc := ToDocument(Default())

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("policy: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("policy: parse %q: %w", path, err)
		}
	}

	if lookup != nil {
		if err := applyEnvOverrides(&doc, lookup); err != nil {
			return Config{}, err
		}
	}

	return doc.Build()
}

func applyEnvOverrides(doc *Document, lookup LookupFunc) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"MIN_FAILED_AI_ATTEMPTS", &doc.MinFailedAIAttempts},
		{"MAX_FAILED_AI_ATTEMPTS", &doc.MaxFailedAIAttempts},
		{"MANY_RECENT_AI_FAILURES_THRESHOLD", &doc.ManyRecentAIFailuresThreshold},
		{"MIN_CUSTOMER_ID_LEN", &doc.MinCustomerIDLen},
		{"MAX_CUSTOMER_ID_LEN", &doc.MaxCustomerIDLen},
		{"MIN_ORDER_ID_LEN", &doc.MinOrderIDLen},
		{"MAX_ORDER_ID_LEN", &doc.MaxOrderIDLen},
		{"COUNTRY_CODE_LEN", &doc.CountryCodeLen},
	}
	for _, o := range ints {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok || v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("policy: %s%s: %w", EnvPrefix, o.key, err)
		}
		*o.dst = i
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"HIGH_VALUE_AMOUNT_THRESHOLD", &doc.HighValueAmountThreshold},
		{"MIN_AI_CONFIDENCE", &doc.MinAIConfidence},
	}
	for _, o := range floats {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("policy: %s%s: %w", EnvPrefix, o.key, err)
		}
		*o.dst = f
	}

	lists := []struct {
		key string
		dst *[]string
	}{
		{"REGULATED_COUNTRIES", &doc.RegulatedCountries},
		{"STRICT_AUTH_COUNTRIES", &doc.StrictAuthCountries},
		{"SUPPORTED_COUNTRIES", &doc.SupportedCountries},
	}
	for _, o := range lists {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}
		*o.dst = splitCodes(v)
	}
	return nil
}

// splitCodes parses "DE, fr,US" into ["DE", "FR", "US"].
func splitCodes(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
