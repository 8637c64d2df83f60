package compute

import (
	"math"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// Point is one feature vector keyed by its node.
type Point struct {
	ID       entity.NodeID
	Features []float64
}

// KMeansResult holds cluster assignments and diagnostics for one run.
type KMeansResult struct {
	K           int
	Assignments map[entity.NodeID]uint64
	Centroids   [][]float64
	Inertia     float64
	Iterations  int
	Silhouette  float64
}

// KMeans runs Lloyd's algorithm with deterministic farthest-point
// initialization: the first centroid is the point closest to the data
// mean, each subsequent one the point farthest from its nearest chosen
// centroid. No randomness, so runs are reproducible.
func KMeans(points []Point, k, maxIterations int) KMeansResult {
	n := len(points)
	if k < 1 || n == 0 {
		return KMeansResult{Assignments: map[entity.NodeID]uint64{}}
	}
	if k > n {
		k = n
	}

	centroids := initialCentroids(points, k)
	assignments := make([]int, n)

	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p.Features, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		// Recompute centroids as cluster means; empty clusters keep their
		// previous centroid.
		dim := len(points[0].Features)
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim && d < len(p.Features); d++ {
				sums[c][d] += p.Features[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
			}
			centroids[c] = sums[c]
		}

		if !changed {
			iterations++
			break
		}
	}

	result := KMeansResult{
		K:           k,
		Assignments: make(map[entity.NodeID]uint64, n),
		Centroids:   centroids,
		Iterations:  iterations,
	}
	for i, p := range points {
		result.Assignments[p.ID] = uint64(assignments[i])
		result.Inertia += squaredDistance(p.Features, centroids[assignments[i]])
	}
	result.Silhouette = silhouette(points, assignments, k)
	return result
}

// OptimalKMeans selects K by silhouette score over [kLo, kHi), clamped to
// the data size, and returns the best run.
func OptimalKMeans(points []Point, kLo, kHi, maxIterations int) KMeansResult {
	if kHi > len(points) {
		kHi = len(points)
	}
	if kLo < 2 {
		kLo = 2
	}
	if kHi <= kLo {
		return KMeans(points, kLo, maxIterations)
	}

	var best KMeansResult
	bestScore := math.Inf(-1)
	for k := kLo; k < kHi; k++ {
		r := KMeans(points, k, maxIterations)
		if r.Silhouette > bestScore {
			best = r
			bestScore = r.Silhouette
		}
	}
	return best
}

func initialCentroids(points []Point, k int) [][]float64 {
	dim := len(points[0].Features)
	mean := make([]float64, dim)
	for _, p := range points {
		for d := 0; d < dim && d < len(p.Features); d++ {
			mean[d] += p.Features[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(points))
	}

	centroids := make([][]float64, 0, k)
	first, bestDist := 0, math.Inf(1)
	for i, p := range points {
		if d := squaredDistance(p.Features, mean); d < bestDist {
			bestDist = d
			first = i
		}
	}
	centroids = append(centroids, append([]float64(nil), points[first].Features...))

	for len(centroids) < k {
		farthest, farDist := 0, -1.0
		for i, p := range points {
			nearest := math.Inf(1)
			for _, c := range centroids {
				if d := squaredDistance(p.Features, c); d < nearest {
					nearest = d
				}
			}
			if nearest > farDist {
				farDist = nearest
				farthest = i
			}
		}
		centroids = append(centroids, append([]float64(nil), points[farthest].Features...))
	}
	return centroids
}

func nearestCentroid(features []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(features, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// EuclideanDistance returns the L2 distance between two vectors.
func EuclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

// silhouette computes the mean silhouette coefficient: for each point,
// (b-a)/max(a,b) where a is the mean intra-cluster distance and b the
// smallest mean distance to another cluster.
func silhouette(points []Point, assignments []int, k int) float64 {
	if k < 2 || len(points) < 2 {
		return 0
	}

	clusterMembers := make([][]int, k)
	for i, c := range assignments {
		clusterMembers[c] = append(clusterMembers[c], i)
	}

	total, counted := 0.0, 0
	for i, p := range points {
		own := assignments[i]
		if len(clusterMembers[own]) < 2 {
			continue
		}

		a := meanDistance(p.Features, points, clusterMembers[own], i)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || len(clusterMembers[c]) == 0 {
				continue
			}
			if d := meanDistance(p.Features, points, clusterMembers[c], -1); d < b {
				b = d
			}
		}
		if math.IsInf(b, 1) {
			continue
		}

		den := math.Max(a, b)
		if den > 0 {
			total += (b - a) / den
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func meanDistance(features []float64, points []Point, members []int, skip int) float64 {
	sum, n := 0.0, 0
	for _, j := range members {
		if j == skip {
			continue
		}
		sum += EuclideanDistance(features, points[j].Features)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
