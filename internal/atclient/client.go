// Package atclient wraps the indigo xrpc client with the retry, rate
// limiting, and pagination policy spec.md §4.2 describes, grounded on
// shared/bluesky-client/client.go's Client type.
package atclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/skyerr"
)

// Config configures a Client the way the teacher's ClientConfig does.
type Config struct {
	Handle    string
	Password  string
	PDSHost   string
	Timeout   time.Duration
	MaxPoints int
	Window    time.Duration
}

// Client is the authenticated ATProto façade every internal package talks
// to. It owns one xrpc.Client, one RateLimiter, and the session JWTs.
type Client struct {
	xrpcc   *xrpc.Client
	limiter *RateLimiter
}

// New builds a Client with a retrying HTTP transport (429/5xx/network
// errors retried with exponential backoff, up to 3 attempts total, per
// spec.md §4.2) and a points-based limiter.
func New(cfg Config) *Client {
	if cfg.PDSHost == "" {
		cfg.PDSHost = "https://bsky.social"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2 // retries after the first attempt: 3 attempts total
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.HTTPClient.Timeout = cfg.Timeout

	return &Client{
		xrpcc: &xrpc.Client{
			Client: rc.StandardClient(),
			Host:   cfg.PDSHost,
		},
		limiter: NewRateLimiter(cfg.MaxPoints, cfg.Window),
	}
}

// checkRetry retries on 429 and 5xx responses and on network errors,
// matching spec.md §4.2; other 4xx client errors are raised immediately.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// CreateSession authenticates with an app password and stores the
// resulting JWTs on the xrpc client's Auth, mirroring the teacher's
// Authenticate's create-session branch.
func (c *Client) CreateSession(ctx context.Context, handle, password string) (*atmodel.Session, error) {
	c.limiter.Acquire(1)
	resp, err := comatproto.ServerCreateSession(ctx, c.xrpcc, &comatproto.ServerCreateSession_Input{
		Identifier: handle,
		Password:   password,
	})
	if err != nil {
		return nil, skyerr.Wrap(skyerr.Auth, "authentication failed", err)
	}

	c.xrpcc.Auth = &xrpc.AuthInfo{
		AccessJwt:  resp.AccessJwt,
		RefreshJwt: resp.RefreshJwt,
		Handle:     resp.Handle,
		Did:        resp.Did,
	}

	return &atmodel.Session{
		Handle:     resp.Handle,
		DID:        atmodel.DID(resp.Did),
		AuthState:  atmodel.AuthStateActive,
		AccessJWT:  resp.AccessJwt,
		RefreshJWT: resp.RefreshJwt,
		CreatedAt:  time.Now(),
		LastAccessed: time.Now(),
	}, nil
}

// RefreshSession attempts a refresh-token exchange, mirroring the
// teacher's Authenticate's refresh-first branch.
func (c *Client) RefreshSession(ctx context.Context, refreshJWT string) (*atmodel.Session, error) {
	c.limiter.Acquire(1)
	refreshAuth := &xrpc.AuthInfo{RefreshJwt: refreshJWT}
	xc := &xrpc.Client{Client: c.xrpcc.Client, Host: c.xrpcc.Host, Auth: refreshAuth}

	resp, err := comatproto.ServerRefreshSession(ctx, xc)
	if err != nil {
		return nil, skyerr.Wrap(skyerr.Auth, "session refresh failed", err)
	}

	c.xrpcc.Auth = &xrpc.AuthInfo{
		AccessJwt:  resp.AccessJwt,
		RefreshJwt: resp.RefreshJwt,
		Handle:     resp.Handle,
		Did:        resp.Did,
	}

	return &atmodel.Session{
		Handle:     resp.Handle,
		DID:        atmodel.DID(resp.Did),
		AuthState:  atmodel.AuthStateActive,
		AccessJWT:  resp.AccessJwt,
		RefreshJWT: resp.RefreshJwt,
		CreatedAt:  time.Now(),
		LastAccessed: time.Now(),
	}, nil
}

// RestoreSession installs previously-persisted JWTs without calling the
// network, used by auth.Manager.ResumeSession.
func (c *Client) RestoreSession(handle, did, accessJWT, refreshJWT string) {
	c.xrpcc.Auth = &xrpc.AuthInfo{
		AccessJwt:  accessJWT,
		RefreshJwt: refreshJWT,
		Handle:     handle,
		Did:        did,
	}
}

// AuthDID returns the authenticated repo DID, empty if unauthenticated.
func (c *Client) AuthDID() string {
	if c.xrpcc.Auth == nil {
		return ""
	}
	return c.xrpcc.Auth.Did
}

// Limiter exposes the rate limiter for callers that need usage stats.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// GetProfile fetches a single actor profile. Cost 1 point.
func (c *Client) GetProfile(ctx context.Context, actor string) (*bsky.ActorDefs_ProfileViewDetailed, error) {
	c.limiter.Acquire(1)
	profile, err := bsky.ActorGetProfile(ctx, c.xrpcc, actor)
	if err != nil {
		return nil, classifyError("get profile", err)
	}
	return profile, nil
}

// GetProfiles fetches up to 25 actor profiles in one call, per spec.md
// §4.2's batch-size ceiling.
func (c *Client) GetProfiles(ctx context.Context, actors []string) ([]*bsky.ActorDefs_ProfileViewDetailed, error) {
	if len(actors) == 0 {
		return nil, nil
	}
	if len(actors) > 25 {
		actors = actors[:25]
	}
	c.limiter.Acquire(1)
	resp, err := bsky.ActorGetProfiles(ctx, c.xrpcc, actors)
	if err != nil {
		return nil, classifyError("get profiles", err)
	}
	return resp.Profiles, nil
}

// Page is a generic cursor-paginated result.
type Page[T any] struct {
	Items  []T
	Cursor string
}

// GetFollowers returns one page (≤100) of the actor's followers.
func (c *Client) GetFollowers(ctx context.Context, actor, cursor string, limit int64) (Page[*bsky.ActorDefs_ProfileView], error) {
	limit = clampLimit(limit, 100)
	c.limiter.Acquire(1)
	resp, err := bsky.GraphGetFollowers(ctx, c.xrpcc, actor, cursor, limit)
	if err != nil {
		return Page[*bsky.ActorDefs_ProfileView]{}, classifyError("get followers", err)
	}
	return Page[*bsky.ActorDefs_ProfileView]{Items: resp.Followers, Cursor: derefCursor(resp.Cursor)}, nil
}

// GetFollows returns one page (≤100) of the actor's follows.
func (c *Client) GetFollows(ctx context.Context, actor, cursor string, limit int64) (Page[*bsky.ActorDefs_ProfileView], error) {
	limit = clampLimit(limit, 100)
	c.limiter.Acquire(1)
	resp, err := bsky.GraphGetFollows(ctx, c.xrpcc, actor, cursor, limit)
	if err != nil {
		return Page[*bsky.ActorDefs_ProfileView]{}, classifyError("get follows", err)
	}
	return Page[*bsky.ActorDefs_ProfileView]{Items: resp.Follows, Cursor: derefCursor(resp.Cursor)}, nil
}

// GetAuthorFeed returns one page of an author's feed (posts/replies/reposts).
func (c *Client) GetAuthorFeed(ctx context.Context, actor, cursor string, limit int64) (Page[*bsky.FeedDefs_FeedViewPost], error) {
	limit = clampLimit(limit, 100)
	c.limiter.Acquire(1)
	resp, err := bsky.FeedGetAuthorFeed(ctx, c.xrpcc, actor, cursor, "posts_with_replies", false, limit)
	if err != nil {
		return Page[*bsky.FeedDefs_FeedViewPost]{}, classifyError("get author feed", err)
	}
	return Page[*bsky.FeedDefs_FeedViewPost]{Items: resp.Feed, Cursor: derefCursor(resp.Cursor)}, nil
}

// GetPosts hydrates up to 25 post URIs at once, per spec.md §4.2.
func (c *Client) GetPosts(ctx context.Context, uris []string) ([]*bsky.FeedDefs_PostView, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if len(uris) > 25 {
		uris = uris[:25]
	}
	c.limiter.Acquire(1)
	resp, err := bsky.FeedGetPosts(ctx, c.xrpcc, uris)
	if err != nil {
		return nil, classifyError("get posts", err)
	}
	return resp.Posts, nil
}

// ListRecords paginates a repo collection (app.bsky.feed.post, .like,
// .repost, app.bsky.graph.follow), grounded on _paginate_collection.
func (c *Client) ListRecords(ctx context.Context, repo, collection, cursor string, limit int64) (Page[*comatproto.RepoListRecords_Record], error) {
	limit = clampLimit(limit, 100)
	c.limiter.Acquire(1)
	resp, err := comatproto.RepoListRecords(ctx, c.xrpcc, collection, cursor, limit, repo, false)
	if err != nil {
		return Page[*comatproto.RepoListRecords_Record]{}, classifyError("list records", err)
	}
	return Page[*comatproto.RepoListRecords_Record]{Items: resp.Records, Cursor: derefCursor(resp.Cursor)}, nil
}

// ListAllRecords drains every page of a collection, the generic
// pagination helper ported from _paginate_collection.
func (c *Client) ListAllRecords(ctx context.Context, repo, collection string) ([]*comatproto.RepoListRecords_Record, error) {
	var all []*comatproto.RepoListRecords_Record
	cursor := ""
	for {
		page, err := c.ListRecords(ctx, repo, collection, cursor, 100)
		if err != nil {
			return all, err
		}
		all = append(all, page.Items...)
		if page.Cursor == "" || len(page.Items) == 0 {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// DeleteRecord removes a single record by collection+rkey.
func (c *Client) DeleteRecord(ctx context.Context, repo, collection, rkey string) error {
	c.limiter.Acquire(1)
	_, err := comatproto.RepoDeleteRecord(ctx, c.xrpcc, &comatproto.RepoDeleteRecord_Input{
		Collection: collection,
		Repo:       repo,
		Rkey:       rkey,
	})
	if err != nil {
		return classifyError("delete record", err)
	}
	return nil
}

// CreateFollow creates an app.bsky.graph.follow record targeting did.
func (c *Client) CreateFollow(ctx context.Context, repo, did string) (string, error) {
	c.limiter.Acquire(1)
	resp, err := comatproto.RepoCreateRecord(ctx, c.xrpcc, &comatproto.RepoCreateRecord_Input{
		Collection: string(atmodel.CollectionFollow),
		Repo:       repo,
		Record: &lexutil.LexiconTypeDecoder{Val: &bsky.GraphFollow{
			LexiconTypeID: "app.bsky.graph.follow",
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			Subject:       did,
		}},
	})
	if err != nil {
		return "", classifyError("create follow", err)
	}
	return resp.Uri, nil
}

// Search runs a post search query, one page at a time.
func (c *Client) Search(ctx context.Context, query, cursor string, limit int64) (Page[*bsky.FeedDefs_PostView], error) {
	limit = clampLimit(limit, 100)
	c.limiter.Acquire(2)
	resp, err := bsky.FeedSearchPosts(ctx, c.xrpcc, "", "", "", "", cursor, "", limit, nil, "", query, nil, "", "", nil, nil, "")
	if err != nil {
		return Page[*bsky.FeedDefs_PostView]{}, classifyError("search posts", err)
	}
	return Page[*bsky.FeedDefs_PostView]{Items: resp.Posts, Cursor: derefCursor(resp.Cursor)}, nil
}

// DownloadRepoBackup requests a full CAR repo export and streams it to
// destPath, the DataExporter CAR-fallback strategy of spec.md §4.5.
func (c *Client) DownloadRepoBackup(ctx context.Context, did, destPath string) error {
	c.limiter.Acquire(5)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.xrpcc.Host+"/xrpc/com.atproto.sync.getRepo?did="+did, nil)
	if err != nil {
		return err
	}
	if c.xrpcc.Auth != nil {
		req.Header.Set("Authorization", "Bearer "+c.xrpcc.Auth.AccessJwt)
	}

	resp, err := c.xrpcc.Client.Do(req)
	if err != nil {
		return classifyError("download repo backup", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return classifyError("download repo backup", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// GetLikes returns up to limit actor handles who liked the given post uri.
func (c *Client) GetLikes(ctx context.Context, postURI string, limit int) ([]string, error) {
	c.limiter.Acquire(1)
	resp, err := bsky.FeedGetLikes(ctx, c.xrpcc, "", "", clampLimit(int64(limit), 100), postURI)
	if err != nil {
		return nil, classifyError("get likes", err)
	}
	handles := make([]string, 0, len(resp.Likes))
	for _, like := range resp.Likes {
		if like.Actor != nil {
			handles = append(handles, like.Actor.Handle)
		}
	}
	return handles, nil
}

// GetRepostedBy returns up to limit actor handles who reposted the post.
func (c *Client) GetRepostedBy(ctx context.Context, postURI string, limit int) ([]string, error) {
	c.limiter.Acquire(1)
	resp, err := bsky.FeedGetRepostedBy(ctx, c.xrpcc, "", "", clampLimit(int64(limit), 100), postURI)
	if err != nil {
		return nil, classifyError("get reposted by", err)
	}
	handles := make([]string, 0, len(resp.RepostedBy))
	for _, actor := range resp.RepostedBy {
		handles = append(handles, actor.Handle)
	}
	return handles, nil
}

func clampLimit(limit int64, max int64) int64 {
	if limit <= 0 {
		return max
	}
	if limit > max {
		return max
	}
	return limit
}

func derefCursor(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}

// classifyError translates an xrpc error into the tagged taxonomy,
// replacing the Python source's substring sniffing (spec.md §9).
func classifyError(op string, err error) error {
	var xerr *xrpc.XRPCError
	if asXRPCError(err, &xerr) {
		switch xerr.StatusCode {
		case http.StatusTooManyRequests:
			return skyerr.Wrap(skyerr.RateLimited, fmt.Sprintf("%s: rate limited", op), err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return skyerr.Wrap(skyerr.Auth, fmt.Sprintf("%s: unauthorized", op), err)
		case http.StatusNotFound:
			return skyerr.Wrap(skyerr.NotFound, fmt.Sprintf("%s: not found", op), err)
		case http.StatusBadRequest:
			return skyerr.Wrap(skyerr.Validation, fmt.Sprintf("%s: invalid request", op), err)
		}
	}
	return skyerr.Wrap(skyerr.Network, fmt.Sprintf("%s: network error", op), err)
}

func asXRPCError(err error, target **xrpc.XRPCError) bool {
	if xe, ok := err.(*xrpc.XRPCError); ok {
		*target = xe
		return true
	}
	return false
}
