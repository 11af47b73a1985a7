package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Document is the serialised form of a Config, shared by the YAML file and
// the policy_configs table.
type Document struct {
	MinFailedAIAttempts           int      `yaml:"min_failed_ai_attempts" json:"min_failed_ai_attempts" validate:"gte=0"`
	MaxFailedAIAttempts           int      `yaml:"max_failed_ai_attempts" json:"max_failed_ai_attempts" validate:"gtefield=MinFailedAIAttempts"`
	ManyRecentAIFailuresThreshold int      `yaml:"many_recent_ai_failures_threshold" json:"many_recent_ai_failures_threshold" validate:"gtefield=MinFailedAIAttempts"`
	HighValueAmountThreshold      float64  `yaml:"high_value_amount_threshold" json:"high_value_amount_threshold" validate:"gt=0"`
	MinAIConfidence               float64  `yaml:"min_ai_confidence" json:"min_ai_confidence" validate:"gte=0,lte=1"`
	MinCustomerIDLen              int      `yaml:"min_customer_id_len" json:"min_customer_id_len" validate:"gt=0"`
	MaxCustomerIDLen              int      `yaml:"max_customer_id_len" json:"max_customer_id_len" validate:"gtefield=MinCustomerIDLen"`
	MinOrderIDLen                 int      `yaml:"min_order_id_len" json:"min_order_id_len" validate:"gt=0"`
	MaxOrderIDLen                 int      `yaml:"max_order_id_len" json:"max_order_id_len" validate:"gtefield=MinOrderIDLen"`
	CountryCodeLen                int      `yaml:"country_code_len" json:"country_code_len" validate:"gt=0"`
	RegulatedCountries            []string `yaml:"regulated_countries" json:"regulated_countries" validate:"dive,alpha,uppercase"`
	StrictAuthCountries           []string `yaml:"strict_auth_countries" json:"strict_auth_countries" validate:"dive,alpha,uppercase"`
	SupportedCountries            []string `yaml:"supported_countries" json:"supported_countries" validate:"required,min=1,dive,alpha,uppercase"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ToDocument converts a Config into its serialised form.
func ToDocument(cfg Config) Document {
	return Document{
		MinFailedAIAttempts:           cfg.MinFailedAIAttempts,
		MaxFailedAIAttempts:           cfg.MaxFailedAIAttempts,
		ManyRecentAIFailuresThreshold: cfg.ManyRecentAIFailuresThreshold,
		HighValueAmountThreshold:      cfg.HighValueAmountThreshold,
		MinAIConfidence:               cfg.MinAIConfidence,
		MinCustomerIDLen:              cfg.MinCustomerIDLen,
		MaxCustomerIDLen:              cfg.MaxCustomerIDLen,
		MinOrderIDLen:                 cfg.MinOrderIDLen,
		MaxOrderIDLen:                 cfg.MaxOrderIDLen,
		CountryCodeLen:                cfg.CountryCodeLen,
		RegulatedCountries:            cfg.RegulatedCountries.Sorted(),
		StrictAuthCountries:           cfg.StrictAuthCountries.Sorted(),
		SupportedCountries:            cfg.SupportedCountries.Sorted(),
	}
}

// Build validates the document and returns the immutable Config.
func (d Document) Build() (Config, error) {
	if err := d.Validate(); err != nil {
		return Config{}, err
	}
	return Config{
		MinFailedAIAttempts:           d.MinFailedAIAttempts,
		MaxFailedAIAttempts:           d.MaxFailedAIAttempts,
		ManyRecentAIFailuresThreshold: d.ManyRecentAIFailuresThreshold,
		HighValueAmountThreshold:      d.HighValueAmountThreshold,
		MinAIConfidence:               d.MinAIConfidence,
		MinCustomerIDLen:              d.MinCustomerIDLen,
		MaxCustomerIDLen:              d.MaxCustomerIDLen,
		MinOrderIDLen:                 d.MinOrderIDLen,
		MaxOrderIDLen:                 d.MaxOrderIDLen,
		CountryCodeLen:                d.CountryCodeLen,
		RegulatedCountries:            NewCountrySet(d.RegulatedCountries...),
		StrictAuthCountries:           NewCountrySet(d.StrictAuthCountries...),
		SupportedCountries:            NewCountrySet(d.SupportedCountries...),
	}, nil
}

// Validate checks field constraints and that every country code has the
// configured length.
func (d Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.ActualTag()))
			}
			return fmt.Errorf("policy: invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("policy: invalid config: %w", err)
	}

	if d.ManyRecentAIFailuresThreshold > d.MaxFailedAIAttempts {
		return fmt.Errorf("policy: invalid config: many_recent_ai_failures_threshold %d exceeds max_failed_ai_attempts %d",
			d.ManyRecentAIFailuresThreshold, d.MaxFailedAIAttempts)
	}

	sets := map[string][]string{
		"regulated_countries":   d.RegulatedCountries,
		"strict_auth_countries": d.StrictAuthCountries,
		"supported_countries":   d.SupportedCountries,
	}
	for name, codes := range sets {
		for _, c := range codes {
			if len(c) != d.CountryCodeLen {
				return fmt.Errorf("policy: invalid config: %s entry %q is not %d letters", name, c, d.CountryCodeLen)
			}
		}
	}
	return nil
}
