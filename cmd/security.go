package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiteanalytics/finx-go/pkg/finx"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

const commandTimeout = 60 * time.Second

//nolint:gochecknoglobals // Cobra boilerplate
var (
	methodsCmd = &cobra.Command{
		Use:   "methods",
		Short: "List the methods the FinX API supports",
		Args:  cobra.NoArgs,
		RunE:  runMethods,
	}

	coverageCmd = &cobra.Command{
		Use:   "coverage <security-id>",
		Short: "Check whether a security is covered",
		Args:  cobra.ExactArgs(1),
		RunE:  runCoverage,
	}

	referenceCmd = &cobra.Command{
		Use:   "reference <security-id>",
		Short: "Fetch security reference data",
		Args:  cobra.ExactArgs(1),
		RunE:  runReference,
	}

	analyticsCmd = &cobra.Command{
		Use:   "analytics <security-id>",
		Short: "Fetch security analytics",
		Long: `Fetches analytics for a security. Only the flags given are sent, so
omitted inputs fall back to the API's defaults.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalytics,
	}

	cashFlowsCmd = &cobra.Command{
		Use:   "cash-flows <security-id>",
		Short: "Fetch projected cash flows",
		Args:  cobra.ExactArgs(1),
		RunE:  runCashFlows,
	}
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(methodsCmd, coverageCmd, referenceCmd, analyticsCmd, cashFlowsCmd)

	addAsOfDateFlag(referenceCmd)
	addAnalyticsFlags(analyticsCmd)
	addAsOfDateFlag(cashFlowsCmd)
	addPricingFlags(cashFlowsCmd)
}

// runCall runs fn against a fresh client and prints its response.
func runCall(cmd *cobra.Command, fn func(ctx context.Context, c *finx.Client) (*types.Response, error)) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	resp, err := fn(ctx, s.client)
	if err != nil {
		return fmt.Errorf("call api: %w", err)
	}

	return printResponse(cmd.OutOrStdout(), resp)
}

func runMethods(cmd *cobra.Command, args []string) error {
	return runCall(cmd, func(ctx context.Context, c *finx.Client) (*types.Response, error) {
		return c.ListAPIFunctions(ctx)
	})
}

func runCoverage(cmd *cobra.Command, args []string) error {
	return runCall(cmd, func(ctx context.Context, c *finx.Client) (*types.Response, error) {
		return c.CoverageCheck(ctx, args[0])
	})
}

func runReference(cmd *cobra.Command, args []string) error {
	params := referenceParamsFromFlags(cmd)
	return runCall(cmd, func(ctx context.Context, c *finx.Client) (*types.Response, error) {
		return c.GetSecurityReferenceData(ctx, args[0], params)
	})
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	params := analyticsParamsFromFlags(cmd)
	return runCall(cmd, func(ctx context.Context, c *finx.Client) (*types.Response, error) {
		return c.GetSecurityAnalytics(ctx, args[0], params)
	})
}

func runCashFlows(cmd *cobra.Command, args []string) error {
	params := cashFlowParamsFromFlags(cmd)
	return runCall(cmd, func(ctx context.Context, c *finx.Client) (*types.Response, error) {
		return c.GetSecurityCashFlows(ctx, args[0], params)
	})
}
