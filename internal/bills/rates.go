package bills

import (
	"time"

	"github.com/shopspring/decimal"

	"telbill/internal/pipeline"
)

const (
	msgStandingCharge = "A standing_charge value must be a Decimal type and set to make this service work as expected."
	msgCallCharge     = "A call_charge value must be a Decimal type and set to make this service work as expected."
)

// Rates are the tariff applied to every call: a fixed standing charge plus
// a charge per whole minute. Only NewRates and ParseRates build usable rates;
// the zero value fails Check.
type Rates struct {
	standing *decimal.Decimal
	call     *decimal.Decimal
}

func NewRates(standing, call *decimal.Decimal) (Rates, error) {
	r := Rates{standing: standing, call: call}
	if err := r.Check(); err != nil {
		return Rates{}, err
	}
	s, c := *standing, *call
	return Rates{standing: &s, call: &c}, nil
}

// Check reports the first charge that was never set.
func (r Rates) Check() error {
	if r.standing == nil {
		return &pipeline.ConfigurationError{Field: "standing_charge", Message: msgStandingCharge}
	}
	if r.call == nil {
		return &pipeline.ConfigurationError{Field: "call_charge", Message: msgCallCharge}
	}
	return nil
}

// ParseRates reads both rates from their decimal text form, as found in the
// billing config section.
func ParseRates(standing, call string) (Rates, error) {
	s, err := decimal.NewFromString(standing)
	if err != nil {
		return Rates{}, &pipeline.ConfigurationError{Field: "standing_charge", Message: msgStandingCharge}
	}
	c, err := decimal.NewFromString(call)
	if err != nil {
		return Rates{}, &pipeline.ConfigurationError{Field: "call_charge", Message: msgCallCharge}
	}
	return NewRates(&s, &c)
}

// Price charges the standing charge once and the call charge for every
// completed minute. Remaining seconds are not charged.
func (r Rates) Price(d time.Duration) decimal.Decimal {
	if d < 0 {
		d = 0
	}
	minutes := decimal.NewFromInt(int64(d / time.Minute))
	return r.standing.Add(r.call.Mul(minutes))
}
