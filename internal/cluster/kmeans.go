// Package cluster groups numeric observations with k-means.
//
// The implementation is deterministic: seeding starts at the first
// observation and picks each following centre as the observation farthest
// from the centres chosen so far. Ties always go to the lowest index, so
// identical observations collapse into a single cluster.
package cluster

import (
	"gonum.org/v1/gonum/floats"
)

// MaxIterations bounds the number of Lloyd iterations.
const MaxIterations = 100

// KMeans partitions points into at most k clusters and returns the cluster
// label of every point, in input order. Labels are in [0, k). Clusters that
// end up with no members are simply absent from the result.
//
// All points must have the same dimension. KMeans returns nil when there
// are no points or k < 1; k is capped at len(points).
func KMeans(points [][]float64, k int) []int {
	if len(points) == 0 || k < 1 {
		return nil
	}
	if k > len(points) {
		k = len(points)
	}

	centers := seed(points, k)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < MaxIterations; iter++ {
		changed := false
		for i, p := range points {
			c := nearest(centers, p)
			if labels[i] != c {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		recenter(centers, points, labels)
	}
	return labels
}

func seed(points [][]float64, k int) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[0]))
	for len(centers) < k {
		best, bestDist := 0, -1.0
		for i, p := range points {
			d := floats.Distance(p, centers[nearest(centers, p)], 2)
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		centers = append(centers, clone(points[best]))
	}
	return centers
}

func nearest(centers [][]float64, p []float64) int {
	best, bestDist := 0, floats.Distance(p, centers[0], 2)
	for c := 1; c < len(centers); c++ {
		if d := floats.Distance(p, centers[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recenter moves every non-empty centre to the mean of its members.
func recenter(centers, points [][]float64, labels []int) {
	sums := make([][]float64, len(centers))
	counts := make([]int, len(centers))
	for i, p := range points {
		c := labels[i]
		if sums[c] == nil {
			sums[c] = make([]float64, len(p))
		}
		floats.Add(sums[c], p)
		counts[c]++
	}
	for c := range centers {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		centers[c] = sums[c]
	}
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
