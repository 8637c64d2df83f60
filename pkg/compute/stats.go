package compute

import "math"

// PopulationStats computes per-dimension mean and standard deviation
// across feature vectors. Standard deviations are floored at a small
// epsilon to keep later divisions safe.
func PopulationStats(features [][]float64) (means, stddevs []float64) {
	if len(features) == 0 {
		return nil, nil
	}

	dim := len(features[0])
	n := float64(len(features))

	means = make([]float64, dim)
	for _, fv := range features {
		for i := 0; i < dim && i < len(fv); i++ {
			means[i] += fv[i]
		}
	}
	for i := range means {
		means[i] /= n
	}

	variance := make([]float64, dim)
	for _, fv := range features {
		for i := 0; i < dim && i < len(fv); i++ {
			diff := fv[i] - means[i]
			variance[i] += diff * diff
		}
	}

	stddevs = make([]float64, dim)
	for i, v := range variance {
		stddevs[i] = math.Max(math.Sqrt(v/n), math.SmallestNonzeroFloat64)
	}
	return means, stddevs
}

// ClusterStdDev computes per-dimension standard deviation of vectors
// around a centroid. With fewer than two vectors the spread is unknown
// and unit deviation is returned.
func ClusterStdDev(vectors [][]float64, centroid []float64, dim int) []float64 {
	if len(vectors) < 2 {
		out := make([]float64, dim)
		for i := range out {
			out[i] = 1.0
		}
		return out
	}

	n := float64(len(vectors))
	variance := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			diff := v[i] - centroid[i]
			variance[i] += diff * diff
		}
	}

	out := make([]float64, dim)
	for i, v := range variance {
		out[i] = math.Max(math.Sqrt(v/n), math.SmallestNonzeroFloat64)
	}
	return out
}
