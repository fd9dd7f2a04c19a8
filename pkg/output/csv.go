package output

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// utf8BOM lets spreadsheet tools detect the encoding.
const utf8BOM = "\uFEFF"

// CSVHeader is the column row of the CSV export.
var CSVHeader = []string{
	"incident",
	"resolved_at",
	"last_responder",
	"application",
	"application_criticality",
	"severity",
	"target_hms",
	"total_hms",
	"total_seconds",
	"target_seconds",
	"verdict",
}

// CSVFormatter writes one row per result.
type CSVFormatter struct {
	opts FormatOptions
}

// NewCSVFormatter creates a new CSV formatter with the given options.
func NewCSVFormatter(opts FormatOptions) *CSVFormatter {
	return &CSVFormatter{opts: opts}
}

// Name returns the format name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

// Format renders the results as CSV. Quiet and Verbose have no effect.
func (f *CSVFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, res := range report.Results {
		if err := cw.Write(csvRow(res)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRow(res *sla.Result) []string {
	resolved := sla.NotAvailable
	if !res.ResolvedAt.IsZero() {
		resolved = res.ResolvedAt.Format(time.DateTime)
	}

	return []string{
		res.Ref,
		resolved,
		res.LastResponder,
		res.Application,
		res.Criticality,
		res.Severity,
		res.TargetHMS,
		res.TotalHMS,
		strconv.FormatInt(res.TotalSeconds, 10),
		strconv.FormatInt(res.TargetSeconds, 10),
		string(res.Verdict),
	}
}
