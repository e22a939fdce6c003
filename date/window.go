package date

import (
	"fmt"
	"strings"
)

// Window is a chart time window measured back from "now".
type Window string

const (
	OneMonth    Window = "1M"
	ThreeMonths Window = "3M"
	SixMonths   Window = "6M"
	OneYear     Window = "1Y"
	All         Window = "ALL"
)

// Windows lists the known windows, shortest first.
var Windows = []Window{OneMonth, ThreeMonths, SixMonths, OneYear, All}

// ParseWindow parses a window name, case insensitive.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToUpper(strings.TrimSpace(s)))
	switch w {
	case OneMonth, ThreeMonths, SixMonths, OneYear, All:
		return w, nil
	case "":
		return All, nil
	default:
		return All, fmt.Errorf("unknown window %q, want one of 1M, 3M, 6M, 1Y, ALL", s)
	}
}

func (w Window) String() string { return string(w) }

// months returns the window length in months, 0 for All.
func (w Window) months() int {
	switch w {
	case OneMonth:
		return 1
	case ThreeMonths:
		return 3
	case SixMonths:
		return 6
	case OneYear:
		return 12
	default:
		return 0
	}
}

// Start returns the first day included in the window ending on now.
// ok is false for All, which has no lower bound.
func (w Window) Start(now Date) (start Date, ok bool) {
	n := w.months()
	if n == 0 {
		return Date{}, false
	}
	return now.AddMonths(-n), true
}

// Contains reports whether day falls in the window ending on now.
func (w Window) Contains(now, day Date) bool {
	start, ok := w.Start(now)
	return !ok || !day.Before(start)
}

// Filter returns the points of s that fall in the window ending on now.
func (w Window) Filter(now Date, s Series) Series {
	start, ok := w.Start(now)
	if !ok {
		return s
	}
	return s.Since(start)
}

// Label formats day for a chart axis: day granularity up to six months,
// month granularity beyond.
func (w Window) Label(day Date) string {
	switch w {
	case OneMonth, ThreeMonths, SixMonths:
		return day.Format("02 Jan")
	default:
		return day.Format("Jan 06")
	}
}
