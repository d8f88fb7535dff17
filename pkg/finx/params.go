package finx

import "github.com/fiteanalytics/finx-go/pkg/types"

// ReferenceParams are the optional inputs of GetSecurityReferenceData.
type ReferenceParams struct {
	AsOfDate *string // YYYY-MM-DD
}

// AnalyticsParams are the optional inputs of GetSecurityAnalytics. Nil fields
// are not sent.
type AnalyticsParams struct {
	AsOfDate        *string
	Price           *float64
	Volatility      *float64
	YieldShift      *float64
	ShockInBP       *int
	HorizonMonths   *uint
	IncomeTax       *float64
	CapGainShortTax *float64
	CapGainLongTax  *float64
}

// CashFlowParams are the optional inputs of GetSecurityCashFlows.
type CashFlowParams struct {
	AsOfDate  *string
	Price     *float64
	ShockInBP *int
}

// Params converts p into request parameters.
func (p ReferenceParams) Params() types.Params {
	return types.Params{types.FieldAsOfDate: p.AsOfDate}.Compact()
}

// Params converts p into request parameters. Analytics requests always carry
// use_kalotay_analytics=false.
func (p AnalyticsParams) Params() types.Params {
	out := types.Params{
		types.FieldAsOfDate:        p.AsOfDate,
		types.FieldPrice:           p.Price,
		types.FieldVolatility:      p.Volatility,
		types.FieldYieldShift:      p.YieldShift,
		types.FieldShockInBP:       p.ShockInBP,
		types.FieldHorizonMonths:   p.HorizonMonths,
		types.FieldIncomeTax:       p.IncomeTax,
		types.FieldCapGainShortTax: p.CapGainShortTax,
		types.FieldCapGainLongTax:  p.CapGainLongTax,
	}.Compact()
	out[types.FieldUseKalotayAnalytics] = false
	return out
}

// Params converts p into request parameters.
func (p CashFlowParams) Params() types.Params {
	return types.Params{
		types.FieldAsOfDate:  p.AsOfDate,
		types.FieldPrice:     p.Price,
		types.FieldShockInBP: p.ShockInBP,
	}.Compact()
}

// String returns a pointer to v.
func String(v string) *string { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Uint returns a pointer to v.
func Uint(v uint) *uint { return &v }
