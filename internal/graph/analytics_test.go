package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymarshal/core/internal/atmodel"
)

func triangleEdges() []atmodel.Edge {
	return []atmodel.Edge{
		{SourceHandle: "alice", TargetHandle: "bob", Type: atmodel.EdgeFollows},
		{SourceHandle: "bob", TargetHandle: "carol", Type: atmodel.EdgeFollows},
		{SourceHandle: "carol", TargetHandle: "alice", Type: atmodel.EdgeFollows},
	}
}

func TestEdgeWeightsIncludeCommonNeighborAndDegreeRatioTerms(t *testing.T) {
	handles := []string{"alice", "bob", "carol"}
	result := Analyse(GonumDetector{}, handles, triangleEdges())

	w := result.EdgeWeights[orderedPair("alice", "bob")]
	// every pair in a triangle shares exactly one common neighbor and has
	// equal degree (ratio term = 1), so weight = 1 + 1 + 1 = 3.
	assert.InDelta(t, 3.0, w, 1e-9)
}

func TestAnalysePopulatesPageRankForEveryNode(t *testing.T) {
	handles := []string{"alice", "bob", "carol"}
	result := Analyse(GonumDetector{}, handles, triangleEdges())

	require.Len(t, result.NodeMetrics, 3)
	for _, h := range handles {
		assert.Greater(t, result.NodeMetrics[h].PageRank, 0.0)
	}
}

func TestAnalyseAssignsEverySpiralNodeAFiniteRadius(t *testing.T) {
	handles := []string{"alice", "bob", "carol", "dave"}
	edges := append(triangleEdges(), atmodel.Edge{SourceHandle: "dave", TargetHandle: "alice", Type: atmodel.EdgeFollows})

	result := Analyse(GonumDetector{}, handles, edges)
	for _, h := range handles {
		m := result.NodeMetrics[h]
		assert.Greater(t, m.SpiralRadius, 0.0)
	}
}

func TestClusterSummariesCoverEveryHandleExactlyOnce(t *testing.T) {
	handles := []string{"alice", "bob", "carol"}
	result := Analyse(GonumDetector{}, handles, triangleEdges())

	var total int
	for _, c := range result.Clusters {
		total += c.Size
	}
	assert.Equal(t, len(handles), total)
}

func TestAggregateMetricsDensityForCompleteTriangleIsOne(t *testing.T) {
	handles := []string{"alice", "bob", "carol"}
	result := Analyse(GonumDetector{}, handles, triangleEdges())

	assert.InDelta(t, 1.0, result.Metrics.Density, 1e-9)
	assert.Len(t, result.Metrics.TopPageRank, 3)
}

func TestAnalyseWithNoEdgesReturnsZeroDensityWithoutPanicking(t *testing.T) {
	handles := []string{"alice", "bob"}
	result := Analyse(GonumDetector{}, handles, nil)

	assert.Equal(t, 0.0, result.Metrics.Density)
	assert.Len(t, result.NodeMetrics, 2)
}

func TestCommonNeighborsCountsSharedAdjacency(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true, "z": true}
	assert.Equal(t, 1, commonNeighbors(a, b))
}

func TestOrderedPairIsSymmetric(t *testing.T) {
	assert.Equal(t, orderedPair("a", "b"), orderedPair("b", "a"))
}
