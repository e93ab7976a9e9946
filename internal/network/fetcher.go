// Package network implements NetworkFetcher, spec.md §4.7: the
// multi-stage pipeline that assembles a handle's follower/following graph,
// classifies orbit tiers, and lays the result out on concentric rings.
// Ported from skymarshal/network/fetcher.py; the thread pool + lock
// pattern for orbit interconnections is grounded on the teacher's
// services/proxy-manager/health.go semaphore+WaitGroup health-check
// scheduler.
package network

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bluesky-social/indigo/api/bsky"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/graph"
)

// Mode controls how much of the orbit-interconnection stage runs.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeDetailed Mode = "detailed"
)

// ProgressFunc reports (operation, current, total) as the fetch advances.
type ProgressFunc func(operation string, current, total int)

// Options configures a single Fetch call.
type Options struct {
	IncludeFollowers bool
	IncludeFollowing bool
	MaxFollowers     int
	MaxFollowing     int
	Mode             Mode
	Progress         ProgressFunc
	Analytics        bool
}

// DefaultOptions mirrors the Python fetcher's defaults.
func DefaultOptions() Options {
	return Options{
		IncludeFollowers: true,
		IncludeFollowing: true,
		MaxFollowers:     500,
		MaxFollowing:     500,
		Mode:             ModeBalanced,
	}
}

const balancedOrbitCap = 150

// Fetcher assembles NetworkSnapshots for a handle.
type Fetcher struct {
	client     *atclient.Client
	maxWorkers int
	detector   graph.CommunityDetector
}

// New builds a Fetcher. maxWorkers bounds profile-hydration and
// orbit-interconnection concurrency (spec.md §4.7 default: 8).
func New(client *atclient.Client, maxWorkers int) *Fetcher {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &Fetcher{client: client, maxWorkers: maxWorkers, detector: graph.GonumDetector{}}
}

// Fetch runs the 8-stage pipeline for handle and returns the assembled
// NetworkSnapshot.
func (f *Fetcher) Fetch(ctx context.Context, handle string, opts Options) (atmodel.NetworkSnapshot, error) {
	if !opts.IncludeFollowers && !opts.IncludeFollowing {
		return atmodel.NetworkSnapshot{}, fmt.Errorf("network: at least one of followers or following must be included")
	}
	report := func(op string, cur, total int) {
		if opts.Progress != nil {
			opts.Progress(op, cur, total)
		}
	}

	// Stage 1: target profile.
	report("Fetching target profile", 0, 1)
	target, err := f.client.GetProfile(ctx, handle)
	if err != nil {
		return atmodel.NetworkSnapshot{}, fmt.Errorf("network: resolve target %q: %w", handle, err)
	}
	report("Fetching target profile", 1, 1)

	nodes := map[string]*atmodel.Node{
		handle: nodeFromDetailed(target, true),
	}
	var edges []atmodel.Edge

	// Stage 2: followers/following, fetched in parallel.
	report("Fetching followers and following", 0, 1)
	follows, followers := f.gatherPrimaryRelations(ctx, handle, opts)
	total := len(follows) + len(followers)
	report("Fetching followers and following", total, total)

	networkHandles := make(map[string]bool)
	if opts.IncludeFollowing {
		for _, p := range follows {
			if p.Handle == "" {
				continue
			}
			networkHandles[p.Handle] = true
			edges = append(edges, atmodel.Edge{SourceHandle: handle, TargetHandle: p.Handle, Type: atmodel.EdgeFollows})
		}
	}
	if opts.IncludeFollowers {
		for _, p := range followers {
			if p.Handle == "" {
				continue
			}
			networkHandles[p.Handle] = true
			edges = append(edges, atmodel.Edge{SourceHandle: p.Handle, TargetHandle: handle, Type: atmodel.EdgeFollows})
		}
	}

	// Stage 3: hydrate profiles in batches of 25, worker pool bounded.
	handleList := make([]string, 0, len(networkHandles))
	for h := range networkHandles {
		handleList = append(handleList, h)
	}
	report("Hydrating profiles", 0, len(handleList))
	f.hydrateProfiles(ctx, nodes, handleList)
	report("Hydrating profiles", len(handleList), len(handleList))

	// Stage 4: mutual detection.
	report("Analyzing mutual connections", 0, 1)
	detectMutuals(nodes, edges, handle)
	report("Analyzing mutual connections", 1, 1)

	// Stage 5: orbit interconnections (skipped in fast mode).
	if opts.Mode != ModeFast {
		edges = f.augmentInterconnections(ctx, nodes, handleList, edges, opts.Mode, report)
	}

	// Stage 6: tier classification.
	classifyOrbitTiers(nodes)

	// Stage 7: ring layout.
	resultNodes := make([]atmodel.Node, 0, len(nodes))
	for _, n := range nodes {
		resultNodes = append(resultNodes, *n)
	}
	sort.Slice(resultNodes, func(i, j int) bool { return resultNodes[i].Handle < resultNodes[j].Handle })
	computeRingPositions(resultNodes)

	metadata := atmodel.NetworkMetadata{
		TargetHandle:       handle,
		Mode:               string(opts.Mode),
		NodeCount:          len(resultNodes),
		EdgeCount:          len(edges),
		OrbitStrengthRatio: orbitStrengthRatio(resultNodes),
		TopInterconnected:  topInterconnected(resultNodes),
	}

	// Stage 8: optional analytics.
	if opts.Analytics {
		handles := make([]string, len(resultNodes))
		for i, n := range resultNodes {
			handles[i] = n.Handle
		}
		result := graph.Analyse(f.detector, handles, edges)
		byHandle := make(map[string]int, len(resultNodes))
		for i, n := range resultNodes {
			byHandle[n.Handle] = i
		}
		for h, m := range result.NodeMetrics {
			i := byHandle[h]
			resultNodes[i].ClusterID = m.ClusterID
			resultNodes[i].PageRank = m.PageRank
			resultNodes[i].DegreeCentrality = m.DegreeCentrality
			resultNodes[i].BetweennessCentrality = m.BetweennessCentrality
			resultNodes[i].SpiralRadius = m.SpiralRadius
			resultNodes[i].SpiralTheta = m.SpiralTheta
			resultNodes[i].SpiralX = m.SpiralX
			resultNodes[i].SpiralY = m.SpiralY
		}
		for i, e := range edges {
			if w, ok := result.EdgeWeights[orderedHandlePair(e.SourceHandle, e.TargetHandle)]; ok {
				edges[i].Weight = w
			}
		}
		graphMetrics := result.Metrics
		metadata.Clusters = result.Clusters
		metadata.GraphMetrics = &graphMetrics
	}

	return atmodel.NetworkSnapshot{Nodes: resultNodes, Edges: edges, Metadata: metadata}, nil
}

func orderedHandlePair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func (f *Fetcher) gatherPrimaryRelations(ctx context.Context, handle string, opts Options) (follows, followers []*bsky.ActorDefs_ProfileView) {
	var wg sync.WaitGroup
	if opts.IncludeFollowing {
		wg.Add(1)
		go func() {
			defer wg.Done()
			follows = f.paginateFollows(ctx, handle, opts.MaxFollowing)
		}()
	}
	if opts.IncludeFollowers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			followers = f.paginateFollowers(ctx, handle, opts.MaxFollowers)
		}()
	}
	wg.Wait()
	return follows, followers
}

func (f *Fetcher) paginateFollows(ctx context.Context, handle string, max int) []*bsky.ActorDefs_ProfileView {
	var out []*bsky.ActorDefs_ProfileView
	cursor := ""
	for {
		page, err := f.client.GetFollows(ctx, handle, cursor, 100)
		if err != nil {
			return out
		}
		out = append(out, page.Items...)
		if page.Cursor == "" || (max > 0 && len(out) >= max) {
			break
		}
		cursor = page.Cursor
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func (f *Fetcher) paginateFollowers(ctx context.Context, handle string, max int) []*bsky.ActorDefs_ProfileView {
	var out []*bsky.ActorDefs_ProfileView
	cursor := ""
	for {
		page, err := f.client.GetFollowers(ctx, handle, cursor, 100)
		if err != nil {
			return out
		}
		out = append(out, page.Items...)
		if page.Cursor == "" || (max > 0 && len(out) >= max) {
			break
		}
		cursor = page.Cursor
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func (f *Fetcher) hydrateProfiles(ctx context.Context, nodes map[string]*atmodel.Node, handles []string) {
	if len(handles) == 0 {
		return
	}
	batches := batchStrings(handles, 25)

	sem := make(chan struct{}, f.maxWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(batch []string) {
			defer wg.Done()
			defer func() { <-sem }()

			profiles, err := f.client.GetProfiles(ctx, batch)
			if err != nil {
				return
			}
			mu.Lock()
			for _, p := range profiles {
				if p.Handle != "" {
					nodes[p.Handle] = nodeFromDetailed(p, false)
				}
			}
			mu.Unlock()
		}(batch)
	}
	wg.Wait()
}

func (f *Fetcher) augmentInterconnections(ctx context.Context, nodes map[string]*atmodel.Node, handles []string, edges []atmodel.Edge, mode Mode, report ProgressFunc) []atmodel.Edge {
	ordered := make([]string, len(handles))
	copy(ordered, handles)
	sort.SliceStable(ordered, func(i, j int) bool {
		ni, nj := nodes[ordered[i]], nodes[ordered[j]]
		if ni == nil || nj == nil {
			return false
		}
		if ni.MutualConnections != nj.MutualConnections {
			return ni.MutualConnections > nj.MutualConnections
		}
		return ni.FollowersCount > nj.FollowersCount
	})

	if mode == ModeBalanced && len(ordered) > balancedOrbitCap {
		ordered = ordered[:balancedOrbitCap]
	}

	total := len(ordered)
	report("Computing orbit interconnections", 0, total)

	var mu sync.Mutex
	progress := 0
	sem := make(chan struct{}, f.maxWorkers)
	var wg sync.WaitGroup

	for _, source := range ordered {
		wg.Add(1)
		sem <- struct{}{}
		go func(source string) {
			defer wg.Done()
			defer func() { <-sem }()

			follows, err := f.client.GetFollows(ctx, source, "", 200)
			var newEdges []atmodel.Edge
			orbitConnections := 0
			if err == nil {
				for _, target := range follows.Items {
					if target.Handle == "" || target.Handle == source {
						continue
					}
					if _, ok := nodes[target.Handle]; !ok {
						continue
					}
					newEdges = append(newEdges, atmodel.Edge{SourceHandle: source, TargetHandle: target.Handle, Type: atmodel.EdgeOrbitConnection})
					orbitConnections++
				}
			}

			mu.Lock()
			edges = append(edges, newEdges...)
			if n, ok := nodes[source]; ok {
				n.OrbitConnections = orbitConnections
			}
			progress++
			if progress%10 == 0 {
				report("Computing orbit interconnections", progress, total)
			}
			mu.Unlock()
		}(source)
	}
	wg.Wait()
	report("Computing orbit interconnections", total, total)
	return edges
}

func batchStrings(items []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func nodeFromDetailed(p *bsky.ActorDefs_ProfileViewDetailed, isTarget bool) *atmodel.Node {
	n := &atmodel.Node{
		Profile: atmodel.Profile{
			DID:    atmodel.DID(p.Did),
			Handle: p.Handle,
		},
		IsTarget: isTarget,
		Tier:     2,
	}
	if p.DisplayName != nil {
		n.DisplayName = *p.DisplayName
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Avatar != nil {
		n.Avatar = *p.Avatar
	}
	if p.FollowersCount != nil {
		n.FollowersCount = int(*p.FollowersCount)
	}
	if p.FollowsCount != nil {
		n.FollowingCount = int(*p.FollowsCount)
	}
	if p.PostsCount != nil {
		n.PostsCount = int(*p.PostsCount)
	}
	if isTarget {
		n.Relationship = atmodel.RelationshipTarget
		n.Tier = 0
	} else {
		n.Relationship = atmodel.RelationshipIndirect
	}
	return n
}

func detectMutuals(nodes map[string]*atmodel.Node, edges []atmodel.Edge, targetHandle string) {
	following := make(map[string]map[string]bool)
	for _, e := range edges {
		if following[e.SourceHandle] == nil {
			following[e.SourceHandle] = make(map[string]bool)
		}
		following[e.SourceHandle][e.TargetHandle] = true
	}

	mutualCount := make(map[string]int)
	for source, targets := range following {
		for target := range targets {
			if following[target][source] {
				mutualCount[source]++
				mutualCount[target]++
			}
		}
	}

	followersOfTarget := following[targetHandle]
	var followingTarget = make(map[string]bool)
	for source, targets := range following {
		if targets[targetHandle] {
			followingTarget[source] = true
		}
	}

	for handle, node := range nodes {
		node.MutualConnections = mutualCount[handle] / 2
		youFollow := followersOfTarget[handle]
		followsYou := followingTarget[handle]

		switch {
		case node.IsTarget:
			node.Relationship = atmodel.RelationshipTarget
		case youFollow && followsYou:
			node.Relationship = atmodel.RelationshipMutual
		case youFollow:
			node.Relationship = atmodel.RelationshipFollowing
		case followsYou:
			node.Relationship = atmodel.RelationshipFollower
		default:
			node.Relationship = atmodel.RelationshipIndirect
		}
	}
}

// classifyOrbitTiers assigns tier 0 (>20 orbit connections), tier 1
// (5-20), tier 2 (<5), per spec.md §4.7.
func classifyOrbitTiers(nodes map[string]*atmodel.Node) {
	for _, n := range nodes {
		if n.IsTarget {
			n.Tier = 0
			continue
		}
		switch {
		case n.OrbitConnections > 20:
			n.Tier = 0
		case n.OrbitConnections >= 5:
			n.Tier = 1
		default:
			n.Tier = 2
		}
	}
}

var ringRadii = map[int]float64{0: 200, 1: 400, 2: 600}

// computeRingPositions lays nodes out on concentric rings by tier,
// target at the origin, per spec.md §4.7.
func computeRingPositions(nodes []atmodel.Node) {
	byTier := map[int][]int{}
	for i, n := range nodes {
		if n.IsTarget {
			nodes[i].X, nodes[i].Y = 0, 0
			continue
		}
		byTier[n.Tier] = append(byTier[n.Tier], i)
	}
	for tier, indices := range byTier {
		placeRing(nodes, indices, ringRadii[tier])
	}
}

func placeRing(nodes []atmodel.Node, indices []int, radius float64) {
	if len(indices) == 0 {
		return
	}
	step := 2 * math.Pi / float64(len(indices))
	for i, idx := range indices {
		angle := float64(i) * step
		nodes[idx].X = radius * math.Cos(angle)
		nodes[idx].Y = radius * math.Sin(angle)
	}
}

func orbitStrengthRatio(nodes []atmodel.Node) map[string]float64 {
	if len(nodes) == 0 {
		return map[string]float64{"strong": 0, "medium": 0, "weak": 0}
	}
	var strong, medium, weak int
	for _, n := range nodes {
		switch n.Tier {
		case 0:
			strong++
		case 1:
			medium++
		default:
			weak++
		}
	}
	total := float64(len(nodes))
	return map[string]float64{"strong": float64(strong) / total, "medium": float64(medium) / total, "weak": float64(weak) / total}
}

func topInterconnected(nodes []atmodel.Node) []atmodel.RankedNode {
	candidates := make([]atmodel.Node, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsTarget {
			candidates = append(candidates, n)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].OrbitConnections != candidates[j].OrbitConnections {
			return candidates[i].OrbitConnections > candidates[j].OrbitConnections
		}
		return candidates[i].MutualConnections > candidates[j].MutualConnections
	})
	if len(candidates) > 20 {
		candidates = candidates[:20]
	}
	ranked := make([]atmodel.RankedNode, len(candidates))
	for i, n := range candidates {
		ranked[i] = atmodel.RankedNode{Handle: n.Handle, Value: float64(n.OrbitConnections)}
	}
	return ranked
}
