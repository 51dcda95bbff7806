package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	require.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	require.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	require.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestAgglomerateGroupsNearDuplicates(t *testing.T) {
	t.Parallel()

	// Two nearly parallel vectors and one orthogonal outlier.
	vectors := [][]float64{
		{1, 0, 0},
		{0.99, 0.05, 0},
		{0, 0, 1},
	}
	labels := agglomerate(distanceMatrix(vectors), 0.15)

	require.Len(t, labels, 3)
	require.Equal(t, labels[0], labels[1])
	require.NotEqual(t, labels[0], labels[2])
}

func TestAgglomerateThresholdZeroKeepsSingletons(t *testing.T) {
	t.Parallel()

	vectors := [][]float64{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
	}
	labels := agglomerate(distanceMatrix(vectors), 0.0001)

	require.Equal(t, []int{0, 1, 2}, labels)
}

func TestAgglomerateHighThresholdMergesAll(t *testing.T) {
	t.Parallel()

	vectors := [][]float64{
		{1, 0},
		{0, 1},
		{-1, 0},
	}
	labels := agglomerate(distanceMatrix(vectors), 3)

	require.Equal(t, []int{0, 0, 0}, labels)
}

func TestAgglomerateLabelsAreDeterministic(t *testing.T) {
	t.Parallel()

	// Index 0 and 2 pair up; labels follow each group's smallest member,
	// so the pair containing index 0 gets label 0.
	vectors := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.99, 0.05, 0},
		{0, 0.98, 0.02},
	}
	labels := agglomerate(distanceMatrix(vectors), 0.15)

	require.Equal(t, []int{0, 1, 0, 1}, labels)
}

func TestAgglomerateEmptyAndSingle(t *testing.T) {
	t.Parallel()

	require.Empty(t, agglomerate(distanceMatrix(nil), 0.15))
	require.Equal(t, []int{0}, agglomerate(distanceMatrix([][]float64{{1, 0}}), 0.15))
}
