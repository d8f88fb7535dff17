package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fiteanalytics/finx-go/pkg/finx"
)

// Optional flags are only sent when set on the command line, so absent
// values never reach the request or its cache key.

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func floatFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func uintFlag(cmd *cobra.Command, name string) *uint {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetUint(name)
	return &v
}

func addAsOfDateFlag(cmd *cobra.Command) {
	cmd.Flags().String("as-of-date", "", "Valuation date (YYYY-MM-DD)")
}

func addPricingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("price", 0, "Security price")
	cmd.Flags().Int("shock-in-bp", 0, "Rate shock in basis points")
}

func addAnalyticsFlags(cmd *cobra.Command) {
	addAsOfDateFlag(cmd)
	addPricingFlags(cmd)
	cmd.Flags().Float64("volatility", 0, "Rate volatility")
	cmd.Flags().Float64("yield-shift", 0, "Yield shift")
	cmd.Flags().Uint("horizon-months", 0, "Horizon in months")
	cmd.Flags().Float64("income-tax", 0, "Income tax rate")
	cmd.Flags().Float64("cap-gain-short-tax", 0, "Short-term capital gains tax rate")
	cmd.Flags().Float64("cap-gain-long-tax", 0, "Long-term capital gains tax rate")
}

func referenceParamsFromFlags(cmd *cobra.Command) finx.ReferenceParams {
	return finx.ReferenceParams{
		AsOfDate: stringFlag(cmd, "as-of-date"),
	}
}

func analyticsParamsFromFlags(cmd *cobra.Command) finx.AnalyticsParams {
	return finx.AnalyticsParams{
		AsOfDate:        stringFlag(cmd, "as-of-date"),
		Price:           floatFlag(cmd, "price"),
		Volatility:      floatFlag(cmd, "volatility"),
		YieldShift:      floatFlag(cmd, "yield-shift"),
		ShockInBP:       intFlag(cmd, "shock-in-bp"),
		HorizonMonths:   uintFlag(cmd, "horizon-months"),
		IncomeTax:       floatFlag(cmd, "income-tax"),
		CapGainShortTax: floatFlag(cmd, "cap-gain-short-tax"),
		CapGainLongTax:  floatFlag(cmd, "cap-gain-long-tax"),
	}
}

func cashFlowParamsFromFlags(cmd *cobra.Command) finx.CashFlowParams {
	return finx.CashFlowParams{
		AsOfDate:  stringFlag(cmd, "as-of-date"),
		Price:     floatFlag(cmd, "price"),
		ShockInBP: intFlag(cmd, "shock-in-bp"),
	}
}
