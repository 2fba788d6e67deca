// Package stats holds the descriptive statistics shared by the analysis tabs.
// Standard deviations are population values, matching how Moodle and the
// reports present them.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev returns the population standard deviation, or 0 for an empty slice.
func StdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks.
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}

// Median is the 50th percentile.
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

// Skewness returns the mean cubed z-score, or 0 when the spread is zero.
func Skewness(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	if std == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		z := (v - mean) / std
		sum += z * z * z
	}
	return sum / float64(len(x))
}

// MinMax returns the smallest and largest values, or zeros for an empty slice.
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return floats.Min(x), floats.Max(x)
}

// Clip limits v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Summary is a five-number summary plus mean and standard deviation.
type Summary struct {
	N      int     `json:"n" yaml:"n"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	SD     float64 `json:"sd" yaml:"sd"`
}

// Summarize computes a Summary of x.
func Summarize(x []float64) Summary {
	lo, hi := MinMax(x)
	return Summary{
		N:      len(x),
		Min:    lo,
		Q1:     Percentile(x, 25),
		Median: Median(x),
		Q3:     Percentile(x, 75),
		Max:    hi,
		Mean:   Mean(x),
		SD:     StdDev(x),
	}
}
