package service

import "github.com/shopspring/decimal"

// FixedRateProvider implements ports.RateProvider with a rate supplied by
// configuration at startup. The engine records the rate into transaction
// metadata so the value applied to each operation stays auditable even after
// the configuration changes.
type FixedRateProvider struct {
	usdToEUR decimal.Decimal
}

// NewFixedRateProvider creates a provider for a fixed USD→EUR rate.
func NewFixedRateProvider(usdToEUR decimal.Decimal) *FixedRateProvider {
	return &FixedRateProvider{usdToEUR: usdToEUR}
}

// USDToEUR returns the configured rate.
func (p *FixedRateProvider) USDToEUR() decimal.Decimal {
	return p.usdToEUR
}
