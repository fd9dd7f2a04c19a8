// Package parser splits free-text incident activity logs into timestamped
// entries.
package parser

import (
	"fmt"
	"time"
)

// Entry is a single timestamped line of an incident activity log.
type Entry struct {
	// Time is when the action was recorded.
	Time time.Time

	// Actor is the normalized name of whoever recorded the action.
	Actor string

	// Message is the trimmed free text that followed the header. It may span lines.
	Message string
}

// Diagnostic describes an entry that was dropped while parsing.
type Diagnostic struct {
	// Incident is the label of the incident whose log was being parsed.
	Incident string

	// Token is the date-time text that failed to parse.
	Token string

	// Err is the underlying parse error.
	Err error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("incident %s: dropped entry with timestamp %q: %v", d.Incident, d.Token, d.Err)
}
