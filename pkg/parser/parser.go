package parser

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/slalog/pkg/textnorm"
)

// ws matches ASCII whitespace plus vertical tab and Unicode space separators
// such as the non-breaking space.
const ws = `[\s\v\p{Z}]`

var (
	// headerPattern matches "DD-MM-YYYY H:MM:SS , actor ,". Group 1 is the
	// date-time token and group 2 the raw actor.
	headerPattern = regexp.MustCompile(
		`(\d{2}[-/]\d{2}[-/]\d{4} \d{1,2}:\d{2}:\d{2})` + ws + `*,` + ws + `*([^,]+?)` + ws + `*,`)

	// boundaryPattern marks where a message ends: whitespace containing a
	// line break followed by a date.
	boundaryPattern = regexp.MustCompile(ws + `*[\r\n]+` + ws + `*\d{2}[-/]\d{2}[-/]\d{4}`)
)

// Pilcrow is used by some exports in place of line breaks.
const Pilcrow = "¶"

// Parser splits activity logs into entries.
type Parser struct {
	timestamps *TimestampParser
}

// New creates a parser that interprets timestamps in loc (UTC when nil).
func New(loc *time.Location) *Parser {
	return &Parser{timestamps: NewTimestampParser(loc)}
}

// Location returns the location timestamps are interpreted in.
func (p *Parser) Location() *time.Location {
	return p.timestamps.Location()
}

// Parse extracts entries from raw. Entries whose header date-time cannot be
// parsed are dropped and reported as diagnostics against label. The result
// is sorted by time; entries with equal times keep their textual order.
func (p *Parser) Parse(raw, label string) ([]Entry, []Diagnostic) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	text := strings.ReplaceAll(raw, Pilcrow, "\n")

	var (
		entries []Entry
		diags   []Diagnostic
	)

	pos := 0
	for pos < len(text) {
		loc := headerPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}

		token := text[pos+loc[2] : pos+loc[3]]
		actor := text[pos+loc[4] : pos+loc[5]]
		headerEnd := pos + loc[1]

		msgEnd := len(text)
		if b := boundaryPattern.FindStringIndex(text[headerEnd:]); b != nil {
			msgEnd = headerEnd + b[0]
		}

		ts, err := p.timestamps.Parse(token)
		if err != nil {
			diags = append(diags, Diagnostic{Incident: label, Token: token, Err: err})
		} else {
			entries = append(entries, Entry{
				Time:    ts,
				Actor:   textnorm.Normalize(actor),
				Message: strings.TrimSpace(text[headerEnd:msgEnd]),
			})
		}

		pos = msgEnd
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})

	return entries, diags
}
