package core

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Stats summarises a sample: mean, sample standard deviation and a
// Student's t confidence interval. The zero value means "insufficient data"
// and encodes as an empty JSON object.
type Stats struct {
	Mean       float64 `json:"mean"`
	Stdv       float64 `json:"stdv"`
	CI         float64 `json:"ci"`
	UpperCI    float64 `json:"upper_ci"`
	LowerCI    float64 `json:"lower_ci"`
	N          int     `json:"n"`
	Confidence float64 `json:"confidence"`
}

// Empty reports whether the sample was too small to summarise.
func (s Stats) Empty() bool {
	return s.N == 0
}

// MarshalJSON encodes empty stats as {}.
func (s Stats) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return []byte("{}"), nil
	}
	type plain Stats
	return json.Marshal(plain(s))
}

// SampleStats computes Stats over the values of data. Fewer than two values
// return the empty Stats. stdv uses n-1; ci = sem × t((1+confidence)/2, n-1).
// All outputs are rounded half-to-even to 4 decimals, and the bounds are
// derived from the rounded ci.
func SampleStats(data map[string]float64, confidence float64) Stats {
	n := len(data)
	if n < 2 {
		return Stats{}
	}

	values := make([]float64, 0, n)
	for _, v := range data {
		values = append(values, v)
	}
	// Map order is random; a fixed summation order keeps results stable.
	sort.Float64s(values)

	mean, stdv := stat.MeanStdDev(values, nil)
	sem := stdv / math.Sqrt(float64(n))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile((1 + confidence) / 2)
	ci := Round(sem*t, 4)

	return Stats{
		Mean:       Round(mean, 4),
		Stdv:       Round(stdv, 4),
		CI:         ci,
		UpperCI:    Round(mean+ci, 4),
		LowerCI:    Round(mean-ci, 4),
		N:          n,
		Confidence: confidence,
	}
}

// Round rounds x half-to-even at the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(x*p) / p
}
