package sla

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatHMS renders d as HH:MM:SS with whole seconds. Hours are not wrapped
// into days, so 27 hours is "27:00:00".
func FormatHMS(d time.Duration) string {
	if d < 0 {
		return "-" + FormatHMS(-d)
	}

	secs := int64(d / time.Second)
	h := secs / 3600
	m := secs % 3600 / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseHMS parses H+:MM:SS. Minutes and seconds must be below 60.
func ParseHMS(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	body, neg := strings.CutPrefix(in, "-")

	parts := strings.Split(body, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q (want HH:MM:SS)", in)
	}

	var fields [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid duration %q", in)
		}
		fields[i] = n
	}

	d := time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second
	if neg {
		d = -d
	}
	return d, nil
}
