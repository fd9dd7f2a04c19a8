package calendar

import (
	"sort"
	"time"
)

// Calendar combines weekly business hours with a holiday set. It is
// immutable once built and safe for concurrent use.
type Calendar struct {
	hours    WeeklyHours
	holidays map[Date]struct{}
	loc      *time.Location
}

// New creates a calendar. Instants are evaluated in loc (UTC when nil).
func New(hours WeeklyHours, holidays []Date, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}

	set := make(map[Date]struct{}, len(holidays))
	for _, d := range holidays {
		set[d] = struct{}{}
	}

	return &Calendar{hours: hours, holidays: set, loc: loc}
}

// Validate reports configuration defects that would make every segment
// measure zero.
func (c *Calendar) Validate() error {
	for _, w := range c.hours {
		if w != nil {
			return nil
		}
	}
	return ErrNoBusinessHours
}

// Hours returns the weekly table.
func (c *Calendar) Hours() WeeklyHours {
	return c.hours
}

// Holidays returns the holiday dates in ascending order.
func (c *Calendar) Holidays() []Date {
	out := make([]Date, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].After(out[i]) })
	return out
}

// Location returns the location instants are evaluated in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether d is in the holiday set.
func (c *Calendar) IsHoliday(d Date) bool {
	_, ok := c.holidays[d]
	return ok
}

// window returns the business window of date d, or nil when d is a holiday
// or a closed weekday.
func (c *Calendar) window(d Date) *Window {
	if c.IsHoliday(d) {
		return nil
	}
	return c.hours.For(d.Weekday())
}

// IsBusinessInstant reports whether t falls inside business hours. Window
// boundaries are inclusive.
func (c *Calendar) IsBusinessInstant(t time.Time) bool {
	t = t.In(c.loc)

	w := c.window(DateOf(t))
	if w == nil {
		return false
	}
	return w.Contains(TimeOfDayOf(t))
}

// EffectiveDuration measures the time between start and end that counts
// toward an SLA. It is zero when start is not before end and the plain
// elapsed time when exempt. Otherwise it counts, at one-second resolution,
// the instants start, start+1s, ... strictly before end that are business
// instants.
func (c *Calendar) EffectiveDuration(start, end time.Time, exempt bool) time.Duration {
	if !start.Before(end) {
		return 0
	}
	if exempt {
		return end.Sub(start)
	}

	span := end.Sub(start)
	samples := int64((span + time.Second - 1) / time.Second)

	var count int64
	last := DateOf(end.In(c.loc))
	for d := DateOf(start.In(c.loc)); !d.After(last); d = d.Next() {
		w := c.window(d)
		if w == nil {
			continue
		}

		noon, uniform := c.uniformOffset(d)
		if !uniform {
			count += c.scanDay(d, w, noon, start, samples)
			continue
		}

		open := w.Start.on(d, c.loc)
		shut := w.End.on(d, c.loc)

		first := ceilDiv(int64(open.Sub(start)), int64(time.Second))
		if first < 0 {
			first = 0
		}
		final := floorDiv(int64(shut.Sub(start)), int64(time.Second))
		if final > samples-1 {
			final = samples - 1
		}

		if final >= first {
			count += final - first + 1
		}
	}

	return time.Duration(count) * time.Second
}

// transitionMargin bounds, around local noon, the instants whose wall date
// can be d. Offset changes of up to three hours stay inside it.
const transitionMargin = 15 * time.Hour

// uniformOffset reports whether no offset change happens within
// transitionMargin of d's local noon, in which case d's window edges are
// single well-defined instants.
func (c *Calendar) uniformOffset(d Date) (time.Time, bool) {
	noon := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, c.loc)
	zoneStart, zoneEnd := noon.ZoneBounds()
	if !zoneStart.IsZero() && zoneStart.After(noon.Add(-transitionMargin)) {
		return noon, false
	}
	if !zoneEnd.IsZero() && zoneEnd.Before(noon.Add(transitionMargin)) {
		return noon, false
	}
	return noon, true
}

// scanDay counts, second by second, the samples start+k·1s (k < samples)
// whose wall date is d and whose time of day lies in w. It is used on days
// where the offset changes and wall times repeat or are skipped.
func (c *Calendar) scanDay(d Date, w *Window, noon, start time.Time, samples int64) int64 {
	first := ceilDiv(int64(noon.Add(-transitionMargin).Sub(start)), int64(time.Second))
	if first < 0 {
		first = 0
	}
	final := floorDiv(int64(noon.Add(transitionMargin).Sub(start)), int64(time.Second))
	if final > samples-1 {
		final = samples - 1
	}

	var count int64
	for k := first; k <= final; k++ {
		t := start.Add(time.Duration(k) * time.Second).In(c.loc)
		if DateOf(t) == d && w.Contains(TimeOfDayOf(t)) {
			count++
		}
	}
	return count
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}
