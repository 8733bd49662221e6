// Package duration decomposes elapsed time into whole hours, minutes and
// seconds and renders the result for humans. The decomposition is the
// observable contract of every session record, so it lives in one place.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Triple is an elapsed interval broken into whole hours, minutes and seconds.
type Triple struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Between returns the h/m/s decomposition of end minus start, using floor
// division on the whole-second difference. end must not precede start.
func Between(start, end time.Time) (Triple, error) {
	if end.Before(start) {
		return Triple{}, fmt.Errorf("end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	total := int(end.Sub(start) / time.Second)
	return Triple{
		Hours:   total / 3600,
		Minutes: (total / 60) % 60,
		Seconds: total % 60,
	}, nil
}

// Humanize renders the triple as "H hours, M minutes, S seconds". The plural
// form is used for 0 and for anything above 1; only exactly 1 is singular, so
// "0 hours" and "2 hours" but "1 hour". All three components always appear.
// This wording is a compatibility contract with existing audit logs.
func (t Triple) Humanize() string {
	return pluralize(t.Hours, "hour") + ", " +
		pluralize(t.Minutes, "minute") + ", " +
		pluralize(t.Seconds, "second")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// String renders the triple in its storage form, e.g. "2:15:0". Components are
// not zero-padded; this matches the historical total_time column format.
func (t Triple) String() string {
	return fmt.Sprintf("%d:%d:%d", t.Hours, t.Minutes, t.Seconds)
}

// Parse reads the storage form produced by String.
func Parse(s string) (Triple, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("malformed duration %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Triple{}, fmt.Errorf("malformed duration %q", s)
		}
		vals[i] = n
	}
	return Triple{Hours: vals[0], Minutes: vals[1], Seconds: vals[2]}, nil
}
