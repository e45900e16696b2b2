package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

// Summary describes the distribution of one metric over a view.
type Summary struct {
	Metric Metric  `json:"metric"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// Std is the sample standard deviation (n-1); zero with fewer than two values.
	Std float64 `json:"std"`
	// Outliers counts values with robust |z| above OutlierThreshold (median/MAD based).
	Outliers         int     `json:"outliers"`
	OutlierThreshold float64 `json:"outlier_threshold"`
}

// DefaultOutlierThreshold is the robust z-score cut-off used by Describe.
const DefaultOutlierThreshold = 3.5

// Describe summarizes a metric. ok is false when the view holds no value for it.
func Describe(v View, m Metric) (s Summary, ok bool) {
	s = Summary{Metric: m, OutlierThreshold: DefaultOutlierThreshold}
	var (
		mean, m2 float64
		vals     []float64
	)
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	v.Each(func(r *dataset.Record) {
		val := m.Of(r)
		if !val.OK {
			return
		}
		x := val.V
		s.Count++
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
		// Welford update
		delta := x - mean
		mean += delta / float64(s.Count)
		m2 += delta * (x - mean)
		vals = append(vals, x)
	})
	if s.Count == 0 {
		return Summary{Metric: m}, false
	}
	s.Mean = mean
	if s.Count > 1 {
		s.Std = math.Sqrt(m2 / float64(s.Count-1))
	}
	median, mad := medianMAD(vals)
	s.Median = median
	if len(vals) >= 8 && mad > 0 {
		for _, x := range vals {
			if math.Abs(0.6745*(x-median)/mad) > s.OutlierThreshold {
				s.Outliers++
			}
		}
	}
	return s, true
}

// Stat is a single figure with an explicit availability marker.
type Stat struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
}

// MeanOf returns the mean of a metric, unavailable when no value exists.
func MeanOf(v View, m Metric) Stat {
	var a acc
	v.Each(func(r *dataset.Record) {
		if val := m.Of(r); val.OK {
			a.sum += val.V
			a.n++
		}
	})
	if a.n == 0 {
		return Stat{}
	}
	return Stat{Value: a.sum / float64(a.n), Available: true}
}

// SumOf returns the sum of a metric; unavailable when the dataset lacks the column.
func SumOf(v View, m Metric) Stat {
	if !v.HasColumn(string(m)) {
		return Stat{}
	}
	var sum float64
	v.Each(func(r *dataset.Record) {
		if val := m.Of(r); val.OK {
			sum += val.V
		}
	})
	return Stat{Value: sum, Available: true}
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
