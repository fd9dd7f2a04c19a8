package parser

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the day-first layout of activity log headers once '/' has been
// replaced by '-'. Hours may be written with one digit.
const Layout = "02-01-2006 15:04:05"

// TimestampParser parses header date-times in a fixed location.
type TimestampParser struct {
	loc *time.Location
}

// NewTimestampParser creates a parser for the given location.
// A nil location means UTC.
func NewTimestampParser(loc *time.Location) *TimestampParser {
	if loc == nil {
		loc = time.UTC
	}
	return &TimestampParser{loc: loc}
}

// Parse converts a DD-MM-YYYY or DD/MM/YYYY header token to a time.
func (p *TimestampParser) Parse(token string) (time.Time, error) {
	s := strings.TrimSpace(strings.ReplaceAll(token, "/", "-"))

	ts, err := time.ParseInLocation(Layout, s, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", token, err)
	}

	return ts, nil
}

// Location returns the location timestamps are interpreted in.
func (p *TimestampParser) Location() *time.Location {
	return p.loc
}
