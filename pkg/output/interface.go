package output

import (
	"context"
	"fmt"
	"io"
)

// Formatter renders compliance reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, csv).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds segment counts, diagnostics and run details.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// BOM prefixes CSV output with a UTF-8 byte order mark.
	BOM bool
}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "text":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "csv":
		return NewCSVFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text, json or csv)", name)
	}
}
