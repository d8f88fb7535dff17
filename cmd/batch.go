package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fiteanalytics/finx-go/internal/app"
	"github.com/fiteanalytics/finx-go/internal/storage"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var batchCmd = &cobra.Command{
	Use:   "batch <method> [security-id...]",
	Short: "Run one method across many securities",
	Long: `Runs a method for every security id given as an argument or listed in
--ids-file and stores each result in the configured sink: console, csv or
postgres (FINX_SINK or --sink).

--ids-file holds one id per line (# starts a comment), or a CSV file whose
header names a security_id column. Other CSV columns (as_of_date, price,
shock_in_bp, ...) become that security's parameters; empty cells are skipped.

Pricing flags apply to every security and lose to per-security CSV values.
At most 100 securities per run; list_api_functions cannot be batched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("ids-file", "", "File with one security id per line, or a CSV with a security_id column")
	batchCmd.Flags().String("sink", "", "Result sink: console, csv or postgres")
	batchCmd.Flags().String("csv-path", "", "CSV file for the csv sink")
	addAnalyticsFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	method, err := types.ParseMethod(args[0])
	if err != nil {
		return err
	}

	requests := make(map[string]types.Params, len(args)-1)
	for _, id := range args[1:] {
		requests[id] = nil
	}

	idsFile, _ := cmd.Flags().GetString("ids-file")
	if idsFile != "" {
		fromFile, err := readBatchFile(idsFile)
		if err != nil {
			return err
		}
		for id, params := range fromFile {
			requests[id] = params
		}
	}
	if len(requests) == 0 {
		return fmt.Errorf("no security ids given")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if sink, _ := cmd.Flags().GetString("sink"); sink != "" {
		s.cfg.SinkMode = sink
	}
	if path, _ := cmd.Flags().GetString("csv-path"); path != "" {
		s.cfg.CSVPath = path
	}

	sink, err := storage.New(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	summary, err := app.RunBatch(ctx, s.client, sink, method, requests, sharedParamsFromFlags(cmd), s.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d succeeded, %d failed\n",
		summary.RunID, summary.Succeeded, summary.Failed)

	return nil
}

func sharedParamsFromFlags(cmd *cobra.Command) types.Params {
	p := analyticsParamsFromFlags(cmd).Params()
	delete(p, types.FieldUseKalotayAnalytics)
	return p
}

// readBatchFile reads the securities listed in path, keyed by id. A file
// whose first row names a security_id column is read as CSV.
func readBatchFile(path string) (map[string]types.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open ids file: %w", err)
	}

	if hasCSVHeader(data) {
		return parseBatchCSV(bytes.NewReader(data))
	}

	ids, err := parseSecurityIDs(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.Params, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	return out, nil
}

func hasCSVHeader(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, name := range strings.Split(line, ",") {
			if strings.EqualFold(strings.TrimSpace(name), types.FieldSecurityID) {
				return true
			}
		}
		return false
	}
	return false
}

func parseSecurityIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ids file: %w", err)
	}

	return ids, nil
}

func parseBatchCSV(r io.Reader) (map[string]types.Params, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read ids header: %w", err)
	}

	idCol := -1
	for i, name := range header {
		header[i] = strings.ToLower(strings.TrimSpace(name))
		if header[i] == types.FieldSecurityID {
			idCol = i
		}
	}

	if idCol < 0 {
		return nil, fmt.Errorf("ids file has no %s column", types.FieldSecurityID)
	}

	out := make(map[string]types.Params)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ids file: %w", err)
		}
		if idCol >= len(row) {
			continue
		}

		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}

		var params types.Params
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if i == idCol || i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			if params == nil {
				params = make(types.Params)
			}
			params[header[i]] = parseCell(cell)
		}
		out[id] = params
	}

	return out, nil
}

// parseCell sends numeric cells as JSON numbers.
func parseCell(cell string) any {
	if n, err := strconv.Atoi(cell); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return cell
}
