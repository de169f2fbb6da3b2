package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`^-?P[0-9]+Y(([0-9]+M)([0-9]+D)?)?$`)
	durationParts   = regexp.MustCompile(`^-?P(?:([0-9]+)Y)?(?:([0-9]+)M)?(?:([0-9]+)D)?$`)
)

// Delta is a calendar difference, like years, months and days between two
// dates. All fields carry the same sign.
type Delta struct {
	Years  int
	Months int
	Days   int
}

// AddTo applies the delta to t. Years and months are applied first and the
// day is clamped to the end of the resulting month, then days are added.
func (d Delta) AddTo(t time.Time) time.Time {
	return addMonths(t, d.Years*12+d.Months).AddDate(0, 0, d.Days)
}

// Negate flips the sign of all fields.
func (d Delta) Negate() Delta {
	return Delta{Years: -d.Years, Months: -d.Months, Days: -d.Days}
}

func addMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	m := int(t.Month()) - 1 + months
	y := t.Year() + floorDiv(m, 12)
	m = m - floorDiv(m, 12)*12 + 1
	d := t.Day()
	if last := DaysIn(y, time.Month(m)); d > last {
		d = last
	}
	return time.Date(y, time.Month(m), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func splitMonths(total int) (years, months int) {
	sign := 1
	if total < 0 {
		sign = -1
	}
	abs := total * sign
	return sign * (abs / 12), sign * (abs % 12)
}

// Between returns the calendar difference a minus b, in whole years and
// months plus remaining days. Adding the result to b yields a.
func Between(a, b time.Time) Delta {
	months := (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
	shifted := func() time.Time { return addMonths(b, months) }
	if a.Before(b) {
		for a.After(shifted()) {
			months++
		}
	} else {
		for a.Before(shifted()) {
			months--
		}
	}
	days := int(a.Sub(shifted()).Hours() / 24)
	y, m := splitMonths(months)
	return Delta{Years: y, Months: m, Days: days}
}

// FormatDuration renders a delta as xsd:duration, restricted to years,
// optionally months and optionally days. The sign is taken from the most
// significant component that is considered.
func FormatDuration(d Delta, withMonths, withDays bool) string {
	var sb strings.Builder
	if d.Years < 0 ||
		(d.Years == 0 && d.Months < 0 && withMonths) ||
		(d.Years == 0 && d.Months == 0 && d.Days < 0 && withDays) {
		sb.WriteString("-")
	}
	fmt.Fprintf(&sb, "P%dY", abs(d.Years))
	if withMonths {
		fmt.Fprintf(&sb, "%dM", abs(d.Months))
	}
	if withDays {
		fmt.Fprintf(&sb, "%dD", abs(d.Days))
	}
	return sb.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CheckDuration returns s without whitespace, if it is a duration of the
// form -?PnY(nM(nD)?)?, else the empty string.
func CheckDuration(s string) string {
	v := stripSpace(s)
	if !durationPattern.MatchString(v) {
		return ""
	}
	return v
}

// ParseDuration reads a duration into a positive delta and a flag telling
// whether the duration was negative.
func ParseDuration(s string) (d Delta, negative bool, err error) {
	match := durationParts.FindStringSubmatch(s)
	if match == nil || s == "P" || s == "-P" {
		return d, false, fmt.Errorf("invalid duration: %q", s)
	}
	for i, p := range []*int{&d.Years, &d.Months, &d.Days} {
		if match[i+1] == "" {
			continue
		}
		if *p, err = strconv.Atoi(match[i+1]); err != nil {
			return d, false, err
		}
	}
	return d, strings.HasPrefix(s, "-"), nil
}

// Subtract returns the partial date lying duration before date. A negative
// duration moves forward in time. The result is as precise as the more
// precise of the two inputs.
func Subtract(date, duration string) string {
	if date == "" {
		return ""
	}
	d, negative, err := ParseDuration(duration)
	if err != nil {
		return ""
	}
	if !negative {
		d = d.Negate()
	}
	result := d.AddTo(Time(date))
	n := 4
	switch {
	case strings.Contains(duration, "D") || HasDay(date):
		n = 10
	case strings.Contains(duration, "M") || HasMonth(date):
		n = 7
	}
	return Format(result, n)
}

// Span computes the duration between a citing and a cited partial date at
// the coarsest granularity both share. When one side is more precise, the
// missing parts are copied from the other side before differencing. It
// returns the empty string, if either date lacks a year.
func Span(citing, cited string) string {
	if !HasYear(citing) || !HasYear(cited) {
		return ""
	}
	var (
		citingMonths = HasMonth(citing)
		citedMonths  = HasMonth(cited)
		citingDays   = HasDay(citing)
		citedDays    = HasDay(cited)
		a            = cut(citing, 10)
		b            = cut(cited, 10)
	)
	switch {
	case citingMonths && !citedMonths:
		b += citing[4:7]
	case !citingMonths && citedMonths:
		a += cited[4:7]
	}
	switch {
	case citingDays && !citedDays:
		b += citing[7:10]
	case !citingDays && citedDays:
		a += cited[7:10]
	}
	delta := Between(Time(a), Time(b))
	return FormatDuration(delta, citingMonths && citedMonths, citingDays && citedDays)
}
