package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/deletion"
)

// handleCleanupAnalyze implements POST /api/cleanup/analyze, porting
// following_cleaner.py's end-to-end flow: paginate the authenticated
// account's follows the same way deletion.Engine.Unfollow does, hydrate
// each into a full profile, then score it with deletion.AnalyzeFollowingQuality.
// Nothing here unfollows; no HTTP route calls Engine.Unfollow, and
// POST /api/delete (backed by Engine.Delete) deletes record URIs.
func (a *App) handleCleanupAnalyze(c *gin.Context) {
	sess := a.sessionFromContext(c)
	ctx := c.Request.Context()

	profiles, err := a.loadFollowingProfiles(ctx, string(sess.DID))
	if err != nil {
		writeError(c, "cleanup analysis failed", err)
		return
	}

	c.JSON(http.StatusOK, deletion.AnalyzeFollowingQuality(profiles))
}

// loadFollowingProfiles pages through GetFollows, then hydrates each
// handle via batched GetProfiles to pick up follower/following/post
// counts that GraphGetFollows' lightweight ActorDefs_ProfileView omits.
func (a *App) loadFollowingProfiles(ctx context.Context, did string) ([]atmodel.Profile, error) {
	handles := make([]string, 0, 256)
	cursor := ""
	for {
		page, err := a.Client.GetFollows(ctx, did, cursor, 100)
		if err != nil {
			return nil, err
		}
		for _, f := range page.Items {
			if f.Handle != "" {
				handles = append(handles, f.Handle)
			}
		}
		if page.Cursor == "" || len(page.Items) == 0 {
			break
		}
		cursor = page.Cursor
	}

	profiles := make([]atmodel.Profile, 0, len(handles))
	now := time.Now()
	for start := 0; start < len(handles); start += 25 {
		end := start + 25
		if end > len(handles) {
			end = len(handles)
		}
		batch, err := a.Client.GetProfiles(ctx, handles[start:end])
		if err != nil {
			continue
		}
		for _, p := range batch {
			profiles = append(profiles, profileFromDetailed(p, now))
		}
	}
	return profiles, nil
}

func profileFromDetailed(p *bsky.ActorDefs_ProfileViewDetailed, now time.Time) atmodel.Profile {
	prof := atmodel.Profile{
		DID:         atmodel.DID(p.Did),
		Handle:      p.Handle,
		LastUpdated: now,
	}
	if p.DisplayName != nil {
		prof.DisplayName = *p.DisplayName
	}
	if p.Description != nil {
		prof.Description = *p.Description
	}
	if p.Avatar != nil {
		prof.Avatar = *p.Avatar
	}
	if p.FollowersCount != nil {
		prof.FollowersCount = int(*p.FollowersCount)
	}
	if p.FollowsCount != nil {
		prof.FollowingCount = int(*p.FollowsCount)
	}
	if p.PostsCount != nil {
		prof.PostsCount = int(*p.PostsCount)
	}
	return prof
}
