package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// printResponse writes the payload as indented JSON. An error payload is
// printed too and then returned as an error so the exit code reflects it.
func printResponse(w io.Writer, resp *types.Response) error {
	if resp == nil {
		return fmt.Errorf("no response")
	}

	var out bytes.Buffer
	err := json.Indent(&out, resp.Data, "", "  ")
	if err != nil {
		out.Reset()
		out.Write(resp.Data)
	}
	fmt.Fprintln(w, out.String())

	return resp.Err()
}
