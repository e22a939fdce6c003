package cushion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBasicStats(t *testing.T) {
	assert.Equal(t, BasicStats{}, ComputeBasicStats(nil))
	assert.Equal(t, BasicStats{Min: 1, Max: 4, Average: 2.5, Total: 10, Count: 4}, ComputeBasicStats([]float64{3, 1, 4, 2}))
}

func TestPercentageChange(t *testing.T) {
	tests := []struct {
		old, new, want float64
	}{
		{0, 0, 0},
		{0, -5, 0},
		{0, 5, 100},
		{100, 150, 50},
		{200, 150, -25},
		{3, 4, 33.33},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentageChange(tt.old, tt.new), "%v -> %v", tt.old, tt.new)
	}
}

func TestMovingAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDeltaSlice(t, []float64{2, 3, 4}, MovingAverage(values, 3), 1e-9)
	assert.Len(t, MovingAverage(values, 5), 1)
	assert.Equal(t, values, MovingAverage(values, 1))
	assert.Empty(t, MovingAverage(values, 6))
	assert.Empty(t, MovingAverage(values, 0))
	assert.Empty(t, MovingAverage(nil, 2))
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil))
	assert.Equal(t, 0.0, Volatility([]float64{42}))
	// sample standard deviation, divided by n-1.
	assert.InDelta(t, math.Sqrt(32.0/7), Volatility([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio([]float64{3, 3, 3}, 1))
	values := []float64{1, 2, 3}
	assert.InDelta(t, (2.0-0.5)/1, SharpeRatio(values, 0.5), 1e-9)
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1, Correlation(a, []float64{2, 4, 6, 8}), 1e-9)
	assert.InDelta(t, -1, Correlation(a, []float64{8, 6, 4, 2}), 1e-9)
	assert.Equal(t, 0.0, Correlation(a, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Correlation([]float64{1}, []float64{2}))
	assert.Equal(t, 0.0, Correlation(a, []float64{5, 5, 5, 5}))
}

func TestGrowthRate(t *testing.T) {
	assert.InDelta(t, 10, GrowthRate(1000, 1210, 2), 1e-9)
	assert.Equal(t, 0.0, GrowthRate(0, 1210, 2))
	assert.Equal(t, 0.0, GrowthRate(1000, 1210, 0))
	assert.InDelta(t, -50, GrowthRate(1000, 500, 1), 1e-9)
}

func TestValueAtRisk(t *testing.T) {
	values := make([]float64, 0, 20)
	for i := 20; i >= 1; i-- {
		values = append(values, float64(i))
	}
	// 5% of 20 values is the first one.
	assert.Equal(t, 1.0, ValueAtRisk(values, DefaultConfidence))
	// 10% of 20 values is the second one.
	assert.Equal(t, 2.0, ValueAtRisk(values, 0.9))
	assert.Equal(t, 0.0, ValueAtRisk(nil, DefaultConfidence))
	assert.Equal(t, 0.0, ValueAtRisk(values, 1))
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown(nil))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))
	assert.InDelta(t, 50, MaxDrawdown([]float64{100, 120, 60, 110, 90}), 1e-9)
	assert.InDelta(t, 25, MaxDrawdown([]float64{0, 100, 75, 200, 180}), 1e-9)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, Description{}, Describe(nil, 0))

	d := Describe([]float64{100, 120, 60, 110}, 0)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 10.0, d.Change)
	assert.InDelta(t, 50, d.MaxDrawdown, 1e-9)
	assert.Equal(t, 60.0, d.ValueAtRisk)
	assert.Greater(t, d.Volatility, 0.0)
}
