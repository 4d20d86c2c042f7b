package metrics

import (
	"math"
	"sort"
)

// trimmedMeanStd computes the mean and population standard deviation of the
// samples after discarding the lowest and highest trim fraction. Trimming
// keeps pacing-outlier detection robust to one-off spikes (a single tab-away
// pause must not inflate the baseline).
func trimmedMeanStd(samples []int64, trim float64) (mean, std float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	drop := int(float64(len(sorted)) * trim)
	kept := sorted[drop : len(sorted)-drop]
	if len(kept) == 0 {
		kept = sorted
	}

	var sum float64
	for _, s := range kept {
		sum += float64(s)
	}
	mean = sum / float64(len(kept))

	var sq float64
	for _, s := range kept {
		d := float64(s) - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(kept)))

	return mean, std
}
