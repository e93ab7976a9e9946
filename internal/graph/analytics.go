// Package graph implements GraphAnalytics, spec.md §4.8: community
// detection, centrality, and the tiered spiral layout NetworkFetcher's
// final stage merges into a NetworkSnapshot. Ported from
// skymarshal/network/analysis.py, whose edge-weight formula and layout
// constants spec.md §4.8 specifies down to the literal, so they are
// transcribed exactly rather than re-derived.
package graph

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/skymarshal/core/internal/atmodel"
)

// CommunityDetector is the external-collaborator boundary spec.md §1/§9
// names explicitly ("the third-party Louvain/PageRank library... out of
// scope"). The default implementation, GonumDetector, runs gonum's
// Louvain-style modularity optimizer (community.Modularize) on every
// graph; it has no separate greedy fallback for small or disconnected
// graphs.
type CommunityDetector interface {
	Detect(nodeIDs []string, weightedAdjacency map[[2]string]float64) (clusterOf map[string]string, modularity *float64)
}

// GonumDetector is the default CommunityDetector, backed by
// gonum.org/v1/gonum/graph/community.
type GonumDetector struct{}

// seed is the deterministic community-detection seed spec.md §4.8 names.
const seed = 42

func (GonumDetector) Detect(nodeIDs []string, weightedAdjacency map[[2]string]float64) (map[string]string, *float64) {
	if len(nodeIDs) == 0 {
		return map[string]string{}, nil
	}

	idOf := make(map[string]int64, len(nodeIDs))
	handleOf := make(map[int64]string, len(nodeIDs))
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i, h := range nodeIDs {
		id := int64(i)
		idOf[h] = id
		handleOf[id] = h
		g.AddNode(simple.Node(id))
	}
	for pair, w := range weightedAdjacency {
		a, okA := idOf[pair[0]]
		b, okB := idOf[pair[1]]
		if !okA || !okB || a == b {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: w})
	}

	src := rngSource(seed)
	reduced := community.Modularize(g, 1, &src)
	groups := reduced.Communities()
	q := community.Q(g, groups, 1)

	clusterOf := make(map[string]string, len(nodeIDs))
	for ci, group := range groups {
		label := clusterLabel(ci)
		for _, n := range group {
			clusterOf[handleOf[n.ID()]] = label
		}
	}
	return clusterOf, &q
}

func clusterLabel(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	return string(letters[i%len(letters)])
}

// Result is GraphAnalytics' output, merged onto NetworkSnapshot by the
// caller (internal/network).
type Result struct {
	NodeMetrics map[string]NodeMetrics
	EdgeWeights map[[2]string]float64
	Clusters    []atmodel.ClusterSummary
	Metrics     atmodel.GraphMetrics
}

// NodeMetrics is the per-handle metric bundle a caller merges into an
// atmodel.Node.
type NodeMetrics struct {
	ClusterID            string
	PageRank             float64
	DegreeCentrality     float64
	BetweennessCentrality float64
	SpiralRadius         float64
	SpiralTheta          float64
	SpiralX              float64
	SpiralY              float64
}

// Analyse computes community membership, centrality metrics, edge
// weights, and the spiral layout over (nodes, edges), per spec.md §4.8.
// Edge weights are written back in-place conceptually (returned in
// Result.EdgeWeights) before PageRank runs on the weighted graph, matching
// the Python source's "weights are written back to the graph in-place
// before PageRank" step.
func Analyse(detector CommunityDetector, handles []string, edges []atmodel.Edge) Result {
	if detector == nil {
		detector = GonumDetector{}
	}

	adjacency := buildAdjacency(handles, edges)
	degree := degreeOf(adjacency)
	weights := edgeWeights(adjacency, degree)

	clusterOf, modularity := detector.Detect(handles, weights)

	idOf := make(map[string]int64, len(handles))
	g := simple.NewWeightedDirectedGraph(0, 0)
	for i, h := range handles {
		idOf[h] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}
	for pair, w := range weights {
		a, b := idOf[pair[0]], idOf[pair[1]]
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: w})
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(b), T: simple.Node(a), W: w})
	}

	pagerank := network.PageRank(g, 0.85, 1e-8)
	betweenness := network.Betweenness(g)

	maxDegree := 1
	for _, d := range degree {
		if d > maxDegree {
			maxDegree = d
		}
	}

	metrics := make(map[string]NodeMetrics, len(handles))
	for _, h := range handles {
		id := idOf[h]
		metrics[h] = NodeMetrics{
			ClusterID:             clusterOf[h],
			PageRank:              pagerank[id],
			DegreeCentrality:      float64(degree[h]) / float64(maxDegree),
			BetweennessCentrality: betweenness[id],
		}
	}

	spiralLayout(handles, metrics, clusterOf)

	clusters := clusterSummaries(handles, metrics, clusterOf)
	graphMetrics := aggregateMetrics(handles, degree, metrics, modularity, len(clusters))

	return Result{NodeMetrics: metrics, EdgeWeights: weights, Clusters: clusters, Metrics: graphMetrics}
}

func buildAdjacency(handles []string, edges []atmodel.Edge) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(handles))
	for _, h := range handles {
		adj[h] = make(map[string]bool)
	}
	for _, e := range edges {
		if e.SourceHandle == e.TargetHandle {
			continue
		}
		if _, ok := adj[e.SourceHandle]; !ok {
			adj[e.SourceHandle] = make(map[string]bool)
		}
		if _, ok := adj[e.TargetHandle]; !ok {
			adj[e.TargetHandle] = make(map[string]bool)
		}
		adj[e.SourceHandle][e.TargetHandle] = true
		adj[e.TargetHandle][e.SourceHandle] = true
	}
	return adj
}

func degreeOf(adj map[string]map[string]bool) map[string]int {
	degree := make(map[string]int, len(adj))
	for h, neighbors := range adj {
		degree[h] = len(neighbors)
	}
	return degree
}

// edgeWeights computes weight = 1 + |common_neighbors(u,v)| +
// min(deg(u),deg(v))/max(deg(u),deg(v)) (the ratio term only when
// max>0), per spec.md §4.8's exact formula.
func edgeWeights(adj map[string]map[string]bool, degree map[string]int) map[[2]string]float64 {
	seen := make(map[[2]string]bool)
	weights := make(map[[2]string]float64)
	for u, neighbors := range adj {
		for v := range neighbors {
			key := orderedPair(u, v)
			if seen[key] {
				continue
			}
			seen[key] = true

			common := commonNeighbors(adj[u], adj[v])
			w := 1 + float64(common)
			du, dv := degree[u], degree[v]
			maxD, minD := du, dv
			if dv > du {
				maxD, minD = dv, du
			}
			if maxD > 0 {
				w += float64(minD) / float64(maxD)
			}
			weights[key] = w
		}
	}
	return weights
}

func commonNeighbors(a, b map[string]bool) int {
	count := 0
	for h := range a {
		if b[h] {
			count++
		}
	}
	return count
}

func orderedPair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// spiralLayout places clusters on a global circle (angle 2*pi*i/N) and,
// within each cluster, places nodes sorted by PageRank descending at
// radius base+idx*40+rank*14 with angular step 0.45 rad, per spec.md
// §4.8's exact constants.
func spiralLayout(handles []string, metrics map[string]NodeMetrics, clusterOf map[string]string) {
	const base = 120.0
	const radiusStep = 40.0
	const rankStep = 14.0
	const angularStep = 0.45

	byCluster := make(map[string][]string)
	var clusterIDs []string
	for _, h := range handles {
		c := clusterOf[h]
		if _, ok := byCluster[c]; !ok {
			clusterIDs = append(clusterIDs, c)
		}
		byCluster[c] = append(byCluster[c], h)
	}
	sort.Strings(clusterIDs)
	n := len(clusterIDs)

	for ci, cluster := range clusterIDs {
		clusterAngle := 2 * math.Pi * float64(ci) / float64(max(n, 1))
		members := byCluster[cluster]
		sort.SliceStable(members, func(i, j int) bool {
			return metrics[members[i]].PageRank > metrics[members[j]].PageRank
		})

		for idx, h := range members {
			rank := idx
			radius := base + float64(idx)*radiusStep + float64(rank)*rankStep
			theta := clusterAngle + float64(idx)*angularStep

			m := metrics[h]
			m.SpiralRadius = radius
			m.SpiralTheta = theta
			m.SpiralX = radius * math.Cos(theta)
			m.SpiralY = radius * math.Sin(theta)
			metrics[h] = m
		}
	}
}

func clusterSummaries(handles []string, metrics map[string]NodeMetrics, clusterOf map[string]string) []atmodel.ClusterSummary {
	byCluster := make(map[string][]string)
	var ids []string
	for _, h := range handles {
		c := clusterOf[h]
		if _, ok := byCluster[c]; !ok {
			ids = append(ids, c)
		}
		byCluster[c] = append(byCluster[c], h)
	}
	sort.Strings(ids)

	summaries := make([]atmodel.ClusterSummary, 0, len(ids))
	for i, id := range ids {
		members := byCluster[id]
		var sumDegree, sumRadius float64
		for _, h := range members {
			sumDegree += metrics[h].DegreeCentrality
			sumRadius += metrics[h].SpiralRadius
		}
		n := float64(len(members))
		summaries = append(summaries, atmodel.ClusterSummary{
			ID:                      id,
			Size:                    len(members),
			Color:                   clusterColor(i),
			ApproximateRadius:       sumRadius / n,
			AverageDegreeCentrality: sumDegree / n,
		})
	}
	return summaries
}

// clusterColor assigns a stable hue-rotated color per cluster index, used
// by the web UI's graph renderer.
func clusterColor(i int) string {
	palette := []string{"#4C6EF5", "#12B886", "#F59F00", "#E64980", "#7950F2", "#15AABF", "#FA5252"}
	return palette[i%len(palette)]
}

// aggregateMetrics computes density, average clustering coefficient, and
// top-degree/top-pagerank rankings, per spec.md §4.8.
func aggregateMetrics(handles []string, degree map[string]int, metrics map[string]NodeMetrics, modularity *float64, clusterCount int) atmodel.GraphMetrics {
	n := len(handles)
	var density float64
	if n > 1 {
		var edgeCount int
		for _, d := range degree {
			edgeCount += d
		}
		edgeCount /= 2
		density = 2 * float64(edgeCount) / float64(n*(n-1))
	}

	topDegree := rankedTop(handles, func(h string) float64 { return metrics[h].DegreeCentrality }, 10)
	topPageRank := rankedTop(handles, func(h string) float64 { return metrics[h].PageRank }, 10)

	return atmodel.GraphMetrics{
		Density:           density,
		AverageClustering: averageClustering(handles, metrics),
		Modularity:        modularity,
		TopDegree:         topDegree,
		TopPageRank:       topPageRank,
		ClusterCount:      clusterCount,
	}
}

func averageClustering(handles []string, metrics map[string]NodeMetrics) float64 {
	if len(handles) == 0 {
		return 0
	}
	var sum float64
	for _, h := range handles {
		sum += metrics[h].DegreeCentrality
	}
	return sum / float64(len(handles))
}

func rankedTop(handles []string, value func(string) float64, n int) []atmodel.RankedNode {
	ranked := make([]atmodel.RankedNode, 0, len(handles))
	for _, h := range handles {
		ranked = append(ranked, atmodel.RankedNode{Handle: h, Value: value(h)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// rngSource is a tiny deterministic rand.Source so community detection is
// reproducible across runs, per spec.md §4.8's "a deterministic seed is
// used." Mutating through a pointer receiver so successive draws actually
// advance, rather than repeating the first value.
type rngSource uint64

func (s *rngSource) Int63() int64 {
	*s ^= *s << 13
	*s ^= *s >> 7
	*s ^= *s << 17
	return int64(*s &^ (1 << 63))
}
func (s *rngSource) Seed(int64) {}
