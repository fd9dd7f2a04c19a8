// Package calendar decides which instants fall inside business hours and
// measures elapsed business time between two instants.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/slalog/pkg/textnorm"
)

// TimeOfDay is a wall-clock offset from midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
	}

	limits := []int{23, 59, 59}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = n
	}

	d := time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second
	return TimeOfDay(d), nil
}

// TimeOfDayOf returns the wall-clock offset of t from its own midnight.
func TimeOfDayOf(t time.Time) TimeOfDay {
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return TimeOfDay(d)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// on returns the instant at this wall-clock time on date d in loc.
func (t TimeOfDay) on(d Date, loc *time.Location) time.Time {
	dur := time.Duration(t)
	return time.Date(d.Year, d.Month, d.Day,
		int(dur/time.Hour), int(dur%time.Hour/time.Minute), int(dur%time.Minute/time.Second),
		int(dur%time.Second), loc)
}

// Window is the business interval of one weekday. Both ends are inclusive.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether tod lies inside the window.
func (w Window) Contains(tod TimeOfDay) bool {
	return w.Start <= tod && tod <= w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// closedWords are the spellings accepted for a day without business hours.
var closedWords = map[string]bool{
	"":        true,
	"closed":  true,
	"cerrado": true,
	"none":    true,
}

// ParseWindow parses "08:00-18:00" or "08:00:00-18:00:00". A closed day
// ("closed", "cerrado", "none" or empty) yields nil.
func ParseWindow(s string) (*Window, error) {
	if closedWords[textnorm.Normalize(s)] {
		return nil, nil
	}

	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid window %q (want HH:MM-HH:MM)", s)
	}

	from, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}

	if from > to {
		return nil, fmt.Errorf("invalid window %q: start is after end", s)
	}

	return &Window{Start: from, End: to}, nil
}

// WeeklyHours holds one optional window per weekday, Monday at index 0
// through Sunday at index 6. A nil entry is a closed day.
type WeeklyHours [7]*Window

// WeekdayIndex maps a time.Weekday to a WeeklyHours index.
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// For returns the window of the given weekday.
func (h WeeklyHours) For(wd time.Weekday) *Window {
	return h[WeekdayIndex(wd)]
}

var weekdayNames = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
	"lunes": 0, "martes": 1, "miercoles": 2, "jueves": 3,
	"viernes": 4, "sabado": 5, "domingo": 6,
}

// ParseWeekday resolves an English or Spanish weekday name to its
// WeeklyHours index.
func ParseWeekday(name string) (int, error) {
	idx, ok := weekdayNames[textnorm.Normalize(name)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return idx, nil
}

// Date is a civil date without a location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, time.UTC))
}

// After reports whether d is later than o.
func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// ErrNoBusinessHours is returned by Validate when every weekday is closed.
var ErrNoBusinessHours = errors.New("no weekday has business hours")
