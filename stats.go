package cushion

import (
	"math"
	"slices"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics over plain value series, usually date.Series.Values(). They never
// fail: degenerate input gives a neutral value, most of the time 0.

// BasicStats is the summary of a series.
type BasicStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
}

// ComputeBasicStats returns min, max, average, total and count of values.
// Everything is 0 for an empty series.
func ComputeBasicStats(values []float64) BasicStats {
	if len(values) == 0 {
		return BasicStats{}
	}
	return BasicStats{
		Min:     floats.Min(values),
		Max:     floats.Max(values),
		Average: stat.Mean(values, nil),
		Total:   floats.Sum(values),
		Count:   len(values),
	}
}

// PercentageChange returns the change from old to new in percent, rounded to
// 2 decimals. From 0 it is 100 for a positive new value and 0 otherwise.
func PercentageChange(old, new float64) float64 {
	if old == 0 {
		if new > 0 {
			return 100
		}
		return 0
	}
	return round((new-old)/old*100, 2)
}

// MovingAverage returns the trailing simple moving average of values over
// window points. The result has len(values)-window+1 points, and is empty
// when window is not in [1, len(values)].
func MovingAverage(values []float64, window int) []float64 {
	if window <= 0 || window > len(values) {
		return []float64{}
	}
	if window == 1 {
		return slices.Clone(values)
	}
	return talib.Sma(values, window)[window-1:]
}

// Volatility returns the sample standard deviation, 0 below 2 points.
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// SharpeRatio returns (mean - riskFree) / volatility, 0 without volatility.
func SharpeRatio(values []float64, riskFree float64) float64 {
	v := Volatility(values)
	if v == 0 {
		return 0
	}
	return (stat.Mean(values, nil) - riskFree) / v
}

// Correlation returns the Pearson correlation of a and b. It is 0 when the
// lengths differ, with less than 2 points, or when a series is constant.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	if Volatility(a) == 0 || Volatility(b) == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// GrowthRate returns the compound annual growth rate in percent, 0 when
// initial or years is not positive.
func GrowthRate(initial, final, years float64) float64 {
	if initial <= 0 || years <= 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// DefaultConfidence is the usual ValueAtRisk confidence level.
const DefaultConfidence = 0.95

// ValueAtRisk returns the empirical quantile of values at 1-confidence.
// It is 0 for an empty series or a confidence outside ]0, 1[.
func ValueAtRisk(values []float64, confidence float64) float64 {
	if len(values) == 0 || confidence <= 0 || confidence >= 1 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	p := round(1-confidence, 9)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// MaxDrawdown returns the largest decline from a running peak, in percent of
// that peak. Peaks that are not positive are ignored.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak, worst := values[0], 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// round rounds x to n decimals.
func round(x float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(x*p) / p
}

// Description gathers the statistics of one series.
type Description struct {
	BasicStats
	Change      float64 `json:"change"` // first to last, in percent
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	ValueAtRisk float64 `json:"valueAtRisk"`
}

// Describe computes the statistics of values, in order.
func Describe(values []float64, riskFree float64) Description {
	d := Description{
		BasicStats:  ComputeBasicStats(values),
		Volatility:  Volatility(values),
		Sharpe:      SharpeRatio(values, riskFree),
		MaxDrawdown: MaxDrawdown(values),
		ValueAtRisk: ValueAtRisk(values, DefaultConfidence),
	}
	if len(values) > 0 {
		d.Change = PercentageChange(values[0], values[len(values)-1])
	}
	return d
}
