package compute

// DBSCANNoise marks points not assigned to any density cluster.
const DBSCANNoise = -1

// DBSCAN clusters feature vectors by density. Points with at least
// minPts neighbors within eps become cores; clusters grow by expanding
// core neighborhoods. Points reachable from no core are labeled
// DBSCANNoise. Labels are returned positionally for the input points.
func DBSCAN(points []Point, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = DBSCANNoise
	}
	if n == 0 || minPts <= 0 {
		return labels
	}

	visited := make([]bool, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			continue // stays noise unless adopted by a later cluster
		}

		labels[i] = cluster
		// Expand the cluster over the (growing) neighborhood seed list.
		for qi := 0; qi < len(neighbors); qi++ {
			j := neighbors[qi]
			if !visited[j] {
				visited[j] = true
				jNeighbors := regionQuery(points, j, eps)
				if len(jNeighbors) >= minPts {
					neighbors = append(neighbors, jNeighbors...)
				}
			}
			if labels[j] == DBSCANNoise {
				labels[j] = cluster
			}
		}
		cluster++
	}
	return labels
}

func regionQuery(points []Point, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if j == i {
			continue
		}
		if EuclideanDistance(points[i].Features, points[j].Features) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
