package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/graph"
	"github.com/skymarshal/core/internal/network"
)

type networkFetchRequest struct {
	Handle string `json:"handle" binding:"required"`
	Depth  string `json:"depth"`
}

type networkFetchResponse struct {
	JobID string `json:"job_id"`
}

// handleNetworkFetch implements POST /api/network/fetch, grounded on
// spec.md §4.10's `StartFetch(handle, params) -> jobId` contract:
// NetworkFetcher.Fetch runs in a goroutine against a JobRegistry entry,
// publishing progress over the `job:progress` real-time channel event.
// Jobs have no cancel operation: once started, a fetch runs until it
// finishes, fails, or reaches the 10-minute timeout in runNetworkFetch.
func (a *App) handleNetworkFetch(c *gin.Context) {
	var req networkFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	handle := string(atmodel.NormalizeHandle(req.Handle))
	opts := network.DefaultOptions()
	if req.Depth != "" {
		opts.Mode = network.Mode(req.Depth)
	}
	opts.Analytics = true

	job := a.Jobs.Create()

	go a.runNetworkFetch(job.ID, handle, opts)

	c.JSON(http.StatusOK, networkFetchResponse{JobID: job.ID})
}

func (a *App) runNetworkFetch(jobID, handle string, opts network.Options) {
	a.Jobs.Update(jobID, func(j *Job) { j.Status = JobRunning })

	cacheKey := network.Key(handle, opts)
	if snapshot, ok := a.NetworkCache.Get(cacheKey, 15*time.Minute); ok {
		a.Jobs.Update(jobID, func(j *Job) {
			j.Status = JobDone
			j.Result = &snapshot
		})
		a.Hub.Broadcast("job:progress", gin.H{"job_id": jobID, "operation": "cache_hit", "current": 1, "total": 1})
		return
	}

	opts.Progress = func(operation string, current, total int) {
		a.Jobs.Update(jobID, func(j *Job) { j.Progress = operation })
		a.Hub.Broadcast("job:progress", gin.H{
			"job_id": jobID, "operation": operation, "current": current, "total": total,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	snapshot, err := a.NetworkFetcher.Fetch(ctx, handle, opts)
	if err != nil {
		a.Jobs.Update(jobID, func(j *Job) {
			j.Status = JobFailed
			j.Err = err
		})
		return
	}

	if opts.Analytics {
		snapshot = mergeGraphAnalytics(snapshot)
	}

	_ = a.NetworkCache.Set(cacheKey, snapshot)

	a.Jobs.Update(jobID, func(j *Job) {
		j.Status = JobDone
		j.Result = &snapshot
	})
}

// mergeGraphAnalytics runs internal/graph.Analyse over the fetched
// snapshot's handles/edges and writes the resulting per-node metrics,
// edge weights, and metadata back in, per spec.md §4.7 stage 8.
func mergeGraphAnalytics(snapshot atmodel.NetworkSnapshot) atmodel.NetworkSnapshot {
	handles := make([]string, len(snapshot.Nodes))
	byHandle := make(map[string]int, len(snapshot.Nodes))
	for i, n := range snapshot.Nodes {
		handles[i] = n.Handle
		byHandle[n.Handle] = i
	}

	result := graph.Analyse(graph.GonumDetector{}, handles, snapshot.Edges)

	for handle, metrics := range result.NodeMetrics {
		i, ok := byHandle[handle]
		if !ok {
			continue
		}
		n := &snapshot.Nodes[i]
		n.ClusterID = metrics.ClusterID
		n.PageRank = metrics.PageRank
		n.DegreeCentrality = metrics.DegreeCentrality
		n.BetweennessCentrality = metrics.BetweennessCentrality
		n.SpiralRadius = metrics.SpiralRadius
		n.SpiralTheta = metrics.SpiralTheta
		n.SpiralX = metrics.SpiralX
		n.SpiralY = metrics.SpiralY
	}

	for i, e := range snapshot.Edges {
		if w, ok := result.EdgeWeights[orderedPair(e.SourceHandle, e.TargetHandle)]; ok {
			snapshot.Edges[i].Weight = w
		}
	}

	snapshot.Metadata.Clusters = result.Clusters
	snapshot.Metadata.GraphMetrics = &result.Metrics

	return snapshot
}

func orderedPair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

type networkStatusResponse struct {
	Status   string `json:"status"`
	Progress string `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleNetworkStatus implements GET /api/network/status/:id.
func (a *App) handleNetworkStatus(c *gin.Context) {
	job := a.Jobs.Get(c.Param("id"))
	if job == nil {
		writeError(c, "job not found", errJobNotFound)
		return
	}
	resp := networkStatusResponse{Status: string(job.Status), Progress: job.Progress}
	if job.Err != nil {
		resp.Error = job.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// handleNetworkResult implements GET /api/network/result/:id.
func (a *App) handleNetworkResult(c *gin.Context) {
	job := a.Jobs.Get(c.Param("id"))
	if job == nil {
		writeError(c, "job not found", errJobNotFound)
		return
	}
	if job.Status != JobDone || job.Result == nil {
		c.JSON(http.StatusOK, networkStatusResponse{Status: string(job.Status), Progress: job.Progress})
		return
	}
	c.JSON(http.StatusOK, job.Result)
}
