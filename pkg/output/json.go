package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter writes the report as one indented JSON document.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// quietReport is the quiet rendering: the aggregates and the run they
// belong to.
type quietReport struct {
	RunID   string  `json:"run_id"`
	Summary Summary `json:"summary"`
}

// Format renders the report as JSON. Quiet drops the per-incident results.
func (f *JSONFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if f.opts.Quiet {
		return enc.Encode(quietReport{RunID: report.Metadata.RunID, Summary: report.Summary})
	}
	return enc.Encode(report)
}
