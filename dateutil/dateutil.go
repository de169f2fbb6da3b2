// Package dateutil handles partial ISO dates (YYYY, YYYY-MM, YYYY-MM-DD),
// calendar differences between them and xsd:duration strings.
//
// The empty string stands for a missing or invalid date throughout.
package dateutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/now"
)

var (
	datePattern     = regexp.MustCompile(`^[0-9]{4}(-[0-9]{2}(-[0-9]{2})?)?$`)
	datetimePattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}$`)

	// pubmedLayouts are the date shapes found in the DP field of PubMed records.
	pubmedLayouts = []struct {
		layout string
		format string
	}{
		{"2006 Jan 2", "2006-01-02"},
		{"2006 Jan", "2006-01"},
		{"2006", "2006"},
	}
)

// DatetimeLayout is the layout of provenance timestamps.
const DatetimeLayout = "2006-01-02T15:04:05"

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func cut(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// HasYear, HasMonth and HasDay report the granularity of a partial date.
func HasYear(s string) bool  { return len(s) >= 4 }
func HasMonth(s string) bool { return len(s) >= 7 }
func HasDay(s string) bool   { return len(s) >= 10 }

// CheckDate returns the partial date contained in the first ten characters
// of s (whitespace removed), or the empty string. A 29th of February in a
// non-leap year is repaired to the 28th.
func CheckDate(s string) string {
	date := cut(stripSpace(s), 10)
	if !datePattern.MatchString(date) {
		return ""
	}
	y, m, d := split(date)
	if y < 1 || m < 1 || m > 12 || d < 1 {
		return ""
	}
	if last := DaysIn(y, time.Month(m)); d > last {
		if m == 2 && d == 29 {
			return date[:8] + "28"
		}
		return ""
	}
	return date
}

// CheckDatetime returns the first nineteen characters of s, if they form a
// YYYY-MM-DDTHH:MM:SS timestamp.
func CheckDatetime(s string) string {
	v := cut(stripSpace(s), 19)
	if !datetimePattern.MatchString(v) {
		return ""
	}
	return v
}

// split returns year, month and day of a partial date, defaulting missing
// month and day to 1.
func split(date string) (y, m, d int) {
	m, d = 1, 1
	y, _ = strconv.Atoi(date[:4])
	if HasMonth(date) {
		m, _ = strconv.Atoi(date[5:7])
	}
	if HasDay(date) {
		d, _ = strconv.Atoi(date[8:10])
	}
	return y, m, d
}

// Time returns the partial date as a time, filling missing parts with
// January and the first. A day beyond the end of the month falls back to
// the 28th, e.g. 2019-02-29 becomes 2019-02-28.
func Time(date string) time.Time {
	y, m, d := split(date)
	if m < 1 || m > 12 {
		m = 1
	}
	if d > DaysIn(y, time.Month(m)) {
		d = 28
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days of a month.
func DaysIn(year int, month time.Month) int {
	return now.With(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)).EndOfMonth().Day()
}

// Format renders t with the same granularity as a partial date of length n
// (4, 7 or 10).
func Format(t time.Time, n int) string {
	return cut(t.Format("2006-01-02"), n)
}

// FromParts builds a partial date from Crossref style date-parts, e.g.
// [2019, 5, 1]. A year outside 1..2999 yields the empty string. A full date
// on January the first is reduced to the year only, since such dates are
// usually placeholders.
func FromParts(parts []int) string {
	if len(parts) == 0 {
		return ""
	}
	y, m, d := parts[0], 1, 1
	if len(parts) > 1 {
		m = parts[1]
	}
	if len(parts) > 2 {
		d = parts[2]
	}
	if y <= 1 || y >= 3000 || m < 1 || m > 12 || d < 1 || d > DaysIn(y, time.Month(m)) {
		return ""
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	switch {
	case len(parts) == 2:
		return t.Format("2006-01")
	case len(parts) >= 3 && !(m == 1 && d == 1):
		return t.Format("2006-01-02")
	default:
		return t.Format("2006")
	}
}

// Year reduces s to its digits and returns the first four, if there are at
// least four.
func Year(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	v := b.String()
	if len(v) < 4 {
		return ""
	}
	return v[:4]
}

// Lenient turns the date notations found in dumps into a partial date:
// partial ISO dates, ISO timestamps, PubMed style "2012 Mar 5" and
// anything else dateparse can make sense of.
func Lenient(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if v := CheckDate(s); v != "" && (len(s) <= 10 || s[10] == 'T' || s[10] == ' ') {
		return v
	}
	for _, l := range pubmedLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return CheckDate(t.Format(l.format))
		}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return ""
	}
	return CheckDate(t.Format("2006-01-02"))
}
