package cushion

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/etnz/cushion/date"
)

// SeriesName names one of the balance history series.
type SeriesName string

const (
	CushionSeries    SeriesName = "cushion"
	InvestmentSeries SeriesName = "investment"
	DebtSeries       SeriesName = "debt"
)

// ParseSeriesName parses a series name, case insensitive.
func ParseSeriesName(s string) (SeriesName, error) {
	switch n := SeriesName(strings.ToLower(strings.TrimSpace(s))); n {
	case CushionSeries, InvestmentSeries, DebtSeries:
		return n, nil
	default:
		return "", fmt.Errorf("unknown series %q, want cushion, investment or debt", s)
	}
}

// Dataset is the values of one series, aligned on Chart.Labels.
type Dataset struct {
	Name   SeriesName `json:"name"`
	Values []float64  `json:"values"`
}

// Chart is a set of series aligned on common dates.
//
// Datasets only holds the visible series, so positions in Datasets are not
// stable when the hidden series change: use Dataset.Name.
type Chart struct {
	Labels   []string    `json:"labels"`
	Dates    []date.Date `json:"dates"`
	Datasets []Dataset   `json:"datasets"`
}

// Dataset returns the dataset of series name.
func (c Chart) Dataset(name SeriesName) (Dataset, bool) {
	i := slices.IndexFunc(c.Datasets, func(d Dataset) bool { return d.Name == name })
	if i < 0 {
		return Dataset{}, false
	}
	return c.Datasets[i], true
}

// BuildSeries aligns the three balance histories on their common dates within
// window, ending on now.
//
// Each history is first reduced to the points inside the window. Labels are
// the union of the remaining dates, in ascending order. For every label date
// and every series, the value is the one of the latest point at or before that
// date (last observation carried forward), or 0 when the series has no such
// point. Among points sharing a date, the last appended wins. Debt values are
// reported as magnitudes. Hidden series are left out of Datasets.
func BuildSeries(cushion, investment, debt date.Series, window date.Window, now date.Date, hidden ...SeriesName) Chart {
	inputs := []struct {
		name   SeriesName
		series date.Series
	}{
		{CushionSeries, window.Filter(now, cushion)},
		{InvestmentSeries, window.Filter(now, investment)},
		{DebtSeries, window.Filter(now, debt)},
	}

	all := make([]date.Series, len(inputs))
	for i, in := range inputs {
		all[i] = in.series
	}
	chart := Chart{Labels: []string{}, Dates: []date.Date{}, Datasets: []Dataset{}}
	for day := range date.Dates(all...) {
		chart.Dates = append(chart.Dates, day)
		chart.Labels = append(chart.Labels, window.Label(day))
	}
	if len(chart.Dates) == 0 {
		return chart
	}

	for _, in := range inputs {
		if slices.Contains(hidden, in.name) {
			continue
		}
		values := carryForward(in.series.Chronological(), chart.Dates)
		if in.name == DebtSeries {
			for i, v := range values {
				values[i] = math.Abs(v)
			}
		}
		chart.Datasets = append(chart.Datasets, Dataset{Name: in.name, Values: values})
	}
	return chart
}

// carryForward merge-joins date-sorted points with sorted days: the value for
// each day is the last point at or before it, 0 before the first point.
func carryForward(points []date.Point, days []date.Date) []float64 {
	values := make([]float64, len(days))
	cursor, current := 0, 0.0
	for i, day := range days {
		for cursor < len(points) && !points[cursor].Date.After(day) {
			current = points[cursor].Value
			cursor++
		}
		values[i] = current
	}
	return values
}
