package types

import "fmt"

// Method is the api_method discriminator sent with every request.
type Method string

// Known FinX API methods.
const (
	MethodListAPIFunctions  Method = "list_api_functions"
	MethodCoverageCheck     Method = "coverage_check"
	MethodSecurityReference Method = "security_reference"
	MethodSecurityAnalytics Method = "security_analytics"
	MethodSecurityCashFlows Method = "security_cash_flows"
)

// Request field names with meaning to the client.
const (
	FieldAPIKey              = "finx_api_key"
	FieldAPIMethod           = "api_method"
	FieldCacheKey            = "cache_key"
	FieldSecurityID          = "security_id"
	FieldAsOfDate            = "as_of_date"
	FieldPrice               = "price"
	FieldVolatility          = "volatility"
	FieldYieldShift          = "yield_shift"
	FieldShockInBP           = "shock_in_bp"
	FieldHorizonMonths       = "horizon_months"
	FieldIncomeTax           = "income_tax"
	FieldCapGainShortTax     = "cap_gain_short_tax"
	FieldCapGainLongTax      = "cap_gain_long_tax"
	FieldUseKalotayAnalytics = "use_kalotay_analytics"
)

// Methods lists every known method in display order.
func Methods() []Method {
	return []Method{
		MethodListAPIFunctions,
		MethodCoverageCheck,
		MethodSecurityReference,
		MethodSecurityAnalytics,
		MethodSecurityCashFlows,
	}
}

// ParseMethod accepts a method name with or without its API spelling,
// e.g. "cash-flows", "cash_flows" and "security_cash_flows".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "list_api_functions", "list-api-functions", "methods":
		return MethodListAPIFunctions, nil
	case "coverage_check", "coverage-check", "coverage":
		return MethodCoverageCheck, nil
	case "security_reference", "reference":
		return MethodSecurityReference, nil
	case "security_analytics", "analytics":
		return MethodSecurityAnalytics, nil
	case "security_cash_flows", "cash_flows", "cash-flows":
		return MethodSecurityCashFlows, nil
	}

	return "", fmt.Errorf("unknown api method %q", s)
}

func (m Method) String() string {
	return string(m)
}
