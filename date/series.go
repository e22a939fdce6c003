package date

import (
	"iter"
	"slices"
)

// Point is one observation of a running balance.
type Point struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// Series is an append-only log of balance observations.
//
// Points are kept in insertion order. Several points may share a date, in
// which case the last appended one supersedes the others. Points are never
// removed nor rewritten.
//
// The zero value is an empty series ready to use.
type Series struct {
	points []Point
}

// NewSeries returns a series holding a copy of points, in that order.
func NewSeries(points ...Point) Series {
	return Series{points: slices.Clone(points)}
}

// Append adds a point at the end of the series.
func (s *Series) Append(on Date, value float64) *Series {
	s.points = append(s.points, Point{Date: on, Value: value})
	return s
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.points) }

// Points returns a copy of the points in insertion order.
func (s Series) Points() []Point { return slices.Clone(s.points) }

// Values returns the values in insertion order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.points))
	for i, p := range s.points {
		values[i] = p.Value
	}
	return values
}

// All returns an iterator over all date/value pairs in insertion order.
func (s Series) All() iter.Seq2[Date, float64] {
	return func(yield func(Date, float64) bool) {
		for _, p := range s.points {
			if !yield(p.Date, p.Value) {
				return
			}
		}
	}
}

// Chronological returns the points sorted by date.
//
// The sort is stable: points sharing a date keep their insertion order, so
// the last one of a date is the one that supersedes the others.
func (s Series) Chronological() []Point {
	points := slices.Clone(s.points)
	slices.SortStableFunc(points, func(a, b Point) int { return a.Date.Compare(b.Date) })
	return points
}

// Since returns the points dated on or after from, in insertion order.
func (s Series) Since(from Date) Series {
	var kept []Point
	for _, p := range s.points {
		if !p.Date.Before(from) {
			kept = append(kept, p)
		}
	}
	return Series{points: kept}
}

// Latest returns the current value of the series: the last appended point
// among those with the most recent date.
func (s Series) Latest() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	latest := s.points[0]
	for _, p := range s.points[1:] {
		if !p.Date.Before(latest.Date) {
			latest = p
		}
	}
	return latest, true
}

// ValueAsOf returns the value on a given day, or the most recent value before it.
// It returns the value and true if found, otherwise it returns 0 and false.
func (s Series) ValueAsOf(day Date) (float64, bool) {
	var (
		value float64
		found bool
	)
	for _, p := range s.Chronological() {
		if p.Date.After(day) {
			break
		}
		value, found = p.Value, true
	}
	return value, found
}

// Dates returns an iterator over all unique dates of several series, in
// chronological order.
func Dates(series ...Series) iter.Seq[Date] {
	days := make([][]Date, 0, len(series))
	for _, s := range series {
		points := s.Chronological()
		d := make([]Date, len(points))
		for i, p := range points {
			d[i] = p.Date
		}
		days = append(days, d)
	}
	return iterate(days...)
}

// iterate returns an iterator over all unique, sorted dates from multiple sorted series of dates.
func iterate(series ...[]Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		indexes := make([]int, len(series))
		for {
			var (
				m     Date
				found bool
			)
			// find the smallest date not yet consumed.
			for i, index := range indexes {
				if index < len(series[i]) {
					if on := series[i][index]; !found || on.Before(m) {
						m, found = on, true
					}
				}
			}
			if !found {
				// All series have been consumed, exit.
				return
			}
			// consume every occurrence of that date.
			for i := range indexes {
				for indexes[i] < len(series[i]) && series[i][indexes[i]] == m {
					indexes[i]++
				}
			}
			if !yield(m) {
				return
			}
		}
	}
}
