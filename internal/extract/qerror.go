package extract

import (
	"math"

	"github.com/mickamy/cardscope/internal/model"
)

const epsilon = 1e-9

// Factor returns actual/estimated, the direction-preserving misestimate ratio.
func Factor(m model.Metric) float64 {
	if m.Estimated <= epsilon {
		if m.Actual <= epsilon {
			return 1
		}
		return math.Inf(1)
	}
	return m.Actual / m.Estimated
}

// QError returns max(est/act, act/est). Both zero is a perfect estimate; one zero is +Inf.
func QError(m model.Metric) float64 {
	f := Factor(m)
	if math.IsInf(f, 1) {
		return f
	}
	if f <= epsilon {
		return math.Inf(1)
	}
	if f < 1 {
		return 1 / f
	}
	return f
}

// MeanQError averages the q-error of the given pairs, skipping infinite values.
// ok is false when no finite pair exists.
func MeanQError(nodes []model.Metric) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, m := range nodes {
		q := QError(m)
		if math.IsInf(q, 0) || math.IsNaN(q) {
			continue
		}
		sum += q
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Worst returns the index of the pair with the largest q-error, or -1 for an empty slice.
func Worst(nodes []model.Metric) int {
	idx := -1
	worst := 0.0
	for i, m := range nodes {
		q := QError(m)
		if idx == -1 || q > worst {
			idx = i
			worst = q
		}
	}
	return idx
}
