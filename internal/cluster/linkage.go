package cluster

import (
	"math"
)

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// distanceMatrix converts embedding vectors to pairwise cosine distances
// (1 - similarity).
func distanceMatrix(vectors [][]float64) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 1 - cosineSimilarity(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// agglomerate runs average-linkage agglomerative clustering over a
// precomputed distance matrix. Merging stops once the closest pair of
// groups is farther apart than threshold, so the number of groups is
// threshold-determined. It returns one group label per input index;
// labels are numbered by each group's smallest member index.
func agglomerate(dist [][]float64, threshold float64) []int {
	n := len(dist)
	groups := make([][]int, 0, n)
	for i := 0; i < n; i++ {
		groups = append(groups, []int{i})
	}

	for len(groups) > 1 {
		bestA, bestB := -1, -1
		bestDist := math.Inf(1)
		for a := 0; a < len(groups); a++ {
			for b := a + 1; b < len(groups); b++ {
				if d := averageLinkage(dist, groups[a], groups[b]); d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestDist > threshold {
			break
		}
		groups[bestA] = append(groups[bestA], groups[bestB]...)
		groups = append(groups[:bestB], groups[bestB+1:]...)
	}

	return labelGroups(groups, n)
}

// averageLinkage is the mean pairwise distance between two groups' members.
func averageLinkage(dist [][]float64, a, b []int) float64 {
	var total float64
	for _, i := range a {
		for _, j := range b {
			total += dist[i][j]
		}
	}
	return total / float64(len(a)*len(b))
}

func labelGroups(groups [][]int, n int) []int {
	// Order groups by smallest member so labels are deterministic.
	minMember := func(g []int) int {
		m := g[0]
		for _, i := range g[1:] {
			if i < m {
				m = i
			}
		}
		return m
	}
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && minMember(groups[j]) < minMember(groups[j-1]); j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}

	labels := make([]int, n)
	for label, group := range groups {
		for _, i := range group {
			labels[i] = label
		}
	}
	return labels
}
