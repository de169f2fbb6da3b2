package dateutil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckDate(t *testing.T) {
	var cases = []struct {
		s      string
		result string
	}{
		{"2019", "2019"},
		{"2019-07", "2019-07"},
		{"2019-07-29", "2019-07-29"},
		{" 2019-07-29 ", "2019-07-29"},
		{"2019-07-29T10:00:00", "2019-07-29"},
		{"2019-02-29", "2019-02-28"},
		{"2020-02-29", "2020-02-29"},
		{"2019-04-31", ""},
		{"2019-13", ""},
		{"2019-00", ""},
		{"0000", ""},
		{"19", ""},
		{"2019/07/29", ""},
		{"", ""},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("date %q", c.s), func(t *testing.T) {
			if got := CheckDate(c.s); got != c.result {
				t.Errorf("got %q, want %q", got, c.result)
			}
		})
	}
}

func TestCheckDatetime(t *testing.T) {
	var cases = []struct {
		s      string
		result string
	}{
		{"2018-11-01T09:14:03", "2018-11-01T09:14:03"},
		{"2018-11-01T09:14:03.123+00:00", "2018-11-01T09:14:03"},
		{"2018-11-01", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := CheckDatetime(c.s); got != c.result {
			t.Errorf("CheckDatetime(%q): got %q, want %q", c.s, got, c.result)
		}
	}
}

func TestCheckDuration(t *testing.T) {
	var cases = []struct {
		s      string
		result string
	}{
		{"P1Y", "P1Y"},
		{"-P0Y6M27D", "-P0Y6M27D"},
		{" P2Y 9M ", "P2Y9M"},
		{"P1Y2D", ""},
		{"P6M", ""},
		{"1Y", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := CheckDuration(c.s); got != c.result {
			t.Errorf("CheckDuration(%q): got %q, want %q", c.s, got, c.result)
		}
	}
}

func TestSpan(t *testing.T) {
	var cases = []struct {
		citing string
		cited  string
		result string
	}{
		{"2019-01-02", "2019-07-29", "-P0Y6M27D"},
		{"2003-10-24", "2001-01", "P2Y9M"},
		{"2001-08-15", "1996-02-29", "P5Y5M17D"},
		{"2018-06", "2017-12-05", "P0Y6M"},
		{"2018-06", "2017", "P1Y"},
		{"2003-08-22", "1998-05", "P5Y3M"},
		{"2019", "2019", "P0Y"},
		{"2017", "2019-05-01", "-P2Y"},
		{"2019-03-01", "2019-02-28", "P0Y0M1D"},
		{"2019-02-28", "2019-03-01", "-P0Y0M1D"},
		{"2019-03-31", "2019-02-28", "P0Y1M3D"},
		{"2019", "", ""},
		{"", "2019", ""},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s %s", c.citing, c.cited), func(t *testing.T) {
			if got := Span(c.citing, c.cited); got != c.result {
				t.Errorf("got %q, want %q", got, c.result)
			}
		})
	}
}

func TestBetween(t *testing.T) {
	var cases = []struct {
		a, b  string
		delta Delta
	}{
		{"2019-01-02", "2019-07-29", Delta{0, -6, -27}},
		{"2001-08-15", "1996-02-29", Delta{5, 5, 17}},
		{"2020-03-31", "2020-02-29", Delta{0, 1, 2}},
		{"2000-01-01", "2000-01-01", Delta{}},
		{"1990-06-15", "2001-06-14", Delta{-10, -11, -29}},
	}
	for _, c := range cases {
		t.Run(c.a+" "+c.b, func(t *testing.T) {
			a, b := Time(c.a), Time(c.b)
			got := Between(a, b)
			if diff := cmp.Diff(c.delta, got); diff != "" {
				t.Fatalf("delta mismatch (-want +got):\n%s", diff)
			}
			if back := got.AddTo(b); !back.Equal(a) {
				t.Errorf("adding delta to %v gives %v, want %v", b, back, a)
			}
		})
	}
}

func TestSubtract(t *testing.T) {
	var cases = []struct {
		date     string
		duration string
		result   string
	}{
		{"2019-01-02", "-P0Y6M27D", "2019-07-29"},
		{"2003-10-24", "P2Y9M", "2001-01-24"},
		{"2003-10", "P2Y9M", "2001-01"},
		{"2003", "P2Y", "2001"},
		{"2003", "P2Y3M", "2000-10"},
		{"2001-08-15", "P5Y5M17D", "1996-02-27"},
		{"2003", "garbage", ""},
		{"", "P1Y", ""},
	}
	for _, c := range cases {
		t.Run(c.date+" "+c.duration, func(t *testing.T) {
			if got := Subtract(c.date, c.duration); got != c.result {
				t.Errorf("got %q, want %q", got, c.result)
			}
		})
	}
}

func TestFromParts(t *testing.T) {
	var cases = []struct {
		parts  []int
		result string
	}{
		{[]int{2019, 5, 3}, "2019-05-03"},
		{[]int{2019, 5}, "2019-05"},
		{[]int{2019}, "2019"},
		{[]int{2019, 1, 1}, "2019"},
		{[]int{2019, 1, 2}, "2019-01-02"},
		{[]int{2019, 13}, ""},
		{[]int{3000}, ""},
		{[]int{}, ""},
	}
	for _, c := range cases {
		if got := FromParts(c.parts); got != c.result {
			t.Errorf("FromParts(%v): got %q, want %q", c.parts, got, c.result)
		}
	}
}

func TestLenient(t *testing.T) {
	var cases = []struct {
		s      string
		result string
	}{
		{"2019-05-01", "2019-05-01"},
		{"2019-05-01T12:00:00Z", "2019-05-01"},
		{"2012 Mar 5", "2012-03-05"},
		{"2012 Mar", "2012-03"},
		{"2012", "2012"},
		{"not a date", ""},
	}
	for _, c := range cases {
		if got := Lenient(c.s); got != c.result {
			t.Errorf("Lenient(%q): got %q, want %q", c.s, got, c.result)
		}
	}
	if got := Year("c. 1999a"); got != "1999" {
		t.Errorf("Year: got %q", got)
	}
}
