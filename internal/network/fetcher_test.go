package network

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/atmodel"
)

func TestDetectMutualsClassifiesAllFourRelationships(t *testing.T) {
	nodes := map[string]*atmodel.Node{
		"target":   {Profile: atmodel.Profile{Handle: "target"}, IsTarget: true},
		"mutual":   {Profile: atmodel.Profile{Handle: "mutual"}},
		"follower": {Profile: atmodel.Profile{Handle: "follower"}},
		"followee": {Profile: atmodel.Profile{Handle: "followee"}},
		"indirect": {Profile: atmodel.Profile{Handle: "indirect"}},
	}
	edges := []atmodel.Edge{
		{SourceHandle: "target", TargetHandle: "mutual", Type: atmodel.EdgeFollows},
		{SourceHandle: "mutual", TargetHandle: "target", Type: atmodel.EdgeFollows},
		{SourceHandle: "follower", TargetHandle: "target", Type: atmodel.EdgeFollows},
		{SourceHandle: "target", TargetHandle: "followee", Type: atmodel.EdgeFollows},
	}

	detectMutuals(nodes, edges, "target")

	assert.Equal(t, atmodel.RelationshipTarget, nodes["target"].Relationship)
	assert.Equal(t, atmodel.RelationshipMutual, nodes["mutual"].Relationship)
	assert.Equal(t, atmodel.RelationshipFollower, nodes["follower"].Relationship)
	assert.Equal(t, atmodel.RelationshipFollowing, nodes["followee"].Relationship)
	assert.Equal(t, atmodel.RelationshipIndirect, nodes["indirect"].Relationship)
}

func TestClassifyOrbitTiersThresholds(t *testing.T) {
	nodes := map[string]*atmodel.Node{
		"strong": {OrbitConnections: 21},
		"medium": {OrbitConnections: 10},
		"weak":   {OrbitConnections: 2},
		"target": {IsTarget: true, OrbitConnections: 0},
	}
	classifyOrbitTiers(nodes)

	assert.Equal(t, 0, nodes["strong"].Tier)
	assert.Equal(t, 1, nodes["medium"].Tier)
	assert.Equal(t, 2, nodes["weak"].Tier)
	assert.Equal(t, 0, nodes["target"].Tier)
}

func TestComputeRingPositionsPlacesTargetAtOrigin(t *testing.T) {
	nodes := []atmodel.Node{
		{Profile: atmodel.Profile{Handle: "target"}, IsTarget: true},
		{Profile: atmodel.Profile{Handle: "a"}, Tier: 0},
		{Profile: atmodel.Profile{Handle: "b"}, Tier: 0},
	}
	computeRingPositions(nodes)

	assert.Equal(t, 0.0, nodes[0].X)
	assert.Equal(t, 0.0, nodes[0].Y)
	assert.NotEqual(t, nodes[1].X, nodes[2].X)
}

func TestOrbitStrengthRatioSumsToOne(t *testing.T) {
	nodes := []atmodel.Node{{Tier: 0}, {Tier: 1}, {Tier: 2}, {Tier: 2}}
	ratio := orbitStrengthRatio(nodes)
	assert.InDelta(t, 1.0, ratio["strong"]+ratio["medium"]+ratio["weak"], 1e-9)
}

func TestBatchStringsSplitsIntoChunksOfSize(t *testing.T) {
	items := make([]string, 53)
	for i := range items {
		items[i] = "h"
	}
	batches := batchStrings(items, 25)
	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 25)
	assert.Len(t, batches[2], 3)
}
