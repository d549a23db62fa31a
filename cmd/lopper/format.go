package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case CLIModules:
		formatModulesText(w, v)
	case CLIExcision:
		formatExcisionText(w, v)
	case CLIProvision:
		formatProvisionText(w, v)
	case []CLIOperation:
		formatOperationsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// formatModulesText prints one module name per line.
func formatModulesText(w io.Writer, m CLIModules) {
	for _, name := range m.Modules {
		fmt.Fprintln(w, name)
	}
}

// formatExcisionText summarizes an excision as readable lines.
func formatExcisionText(w io.Writer, e CLIExcision) {
	fmt.Fprintf(w, "Removed module %s.\n", e.RemovedModule)
	for _, f := range e.AffectedFiles {
		fmt.Fprintf(w, "  rewrote %s\n", f)
	}
	fmt.Fprintf(w, "Remaining modules: %s\n", joinOrNone(e.RemainingModules))
	if e.OperationID != "" {
		fmt.Fprintf(w, "Operation: %s\n", e.OperationID)
	}
}

// formatProvisionText summarizes a provision run as readable lines.
func formatProvisionText(w io.Writer, p CLIProvision) {
	fmt.Fprintf(w, "Cloned %s into %s.\n", p.OriginalName, p.Path)
	if p.RemovedModule != "" {
		fmt.Fprintf(w, "Removed module %s (%d files rewritten).\n", p.RemovedModule, len(p.AffectedFiles))
	}
	if p.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", p.Warning)
	}
	fmt.Fprintf(w, "Modules: %s\n", joinOrNone(p.Modules))
	if p.OperationID != "" {
		fmt.Fprintf(w, "Operation: %s\n", p.OperationID)
	}
}

// formatOperationsText formats journal entries as aligned columns.
func formatOperationsText(w io.Writer, ops []CLIOperation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tTARGET\tMODULE\tERROR")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.StartedAt.Format(time.RFC3339), op.Kind, op.Status, op.Target, op.Module, op.Error)
	}
	tw.Flush()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
