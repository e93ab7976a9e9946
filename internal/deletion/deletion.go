// Package deletion implements batched record deletion and unfollow, per
// spec.md §4.4.
package deletion

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/auth"
	"github.com/skymarshal/core/internal/skyerr"
)

// DefaultPause is the inter-call pacing spec.md §4.4 names (100ms).
const DefaultPause = 100 * time.Millisecond

// ContentRemover is the subset of ContentStore the engine needs to evict
// deleted items, avoiding an import cycle with internal/export.
type ContentRemover interface {
	Remove(uri atmodel.RecordURI)
}

// Engine runs Delete/Unfollow against a single authenticated repo.
type Engine struct {
	client   *atclient.Client
	authMgr  *auth.Manager
	selfDID  atmodel.DID
	limiter  *rate.Limiter
	store    ContentRemover
}

// NewEngine builds an Engine paced at one call per DefaultPause.
func NewEngine(client *atclient.Client, authMgr *auth.Manager, selfDID atmodel.DID, store ContentRemover) *Engine {
	return &Engine{
		client:  client,
		authMgr: authMgr,
		selfDID: selfDID,
		limiter: rate.NewLimiter(rate.Every(DefaultPause), 1),
		store:   store,
	}
}

// Delete removes each URI's record, grouping by collection and pacing
// calls to stay within budget. It never aborts the batch on a single
// failure; per-URI errors are collected and returned alongside the count
// of records actually deleted.
func (e *Engine) Delete(ctx context.Context, uris []atmodel.RecordURI) (int, map[atmodel.RecordURI]error) {
	errs := make(map[atmodel.RecordURI]error)
	deleted := 0

	byCollection := make(map[string][]atmodel.RecordURI)
	var collections []string // first-seen order
	parsedOf := make(map[atmodel.RecordURI]atmodel.Parsed)

	for _, uri := range uris {
		parsed, err := uri.Parse()
		if err != nil {
			errs[uri] = skyerr.Wrap(skyerr.Validation, "malformed record uri", err)
			continue
		}
		if parsed.DID != e.selfDID {
			errs[uri] = skyerr.New(skyerr.Conflict, "uri does not belong to the authenticated account")
			continue
		}
		if _, seen := byCollection[parsed.Collection]; !seen {
			collections = append(collections, parsed.Collection)
		}
		byCollection[parsed.Collection] = append(byCollection[parsed.Collection], uri)
		parsedOf[uri] = parsed
	}

	order := make([]atmodel.RecordURI, 0, len(parsedOf))
	for _, collection := range collections {
		order = append(order, byCollection[collection]...)
	}

	for _, uri := range order {
		parsed := parsedOf[uri]
		if err := e.limiter.Wait(ctx); err != nil {
			errs[uri] = err
			continue
		}

		err := e.authMgr.CallWithReauth(ctx, func(ctx context.Context) error {
			return e.client.DeleteRecord(ctx, string(parsed.DID), parsed.Collection, parsed.RKey)
		})
		if err != nil {
			errs[uri] = err
			continue
		}

		if e.store != nil {
			e.store.Remove(uri)
		}
		deleted++
	}

	return deleted, errs
}

// ErrNotFollowed is returned when Unfollow can't locate a follow record
// for the target DID after a full pagination of GetFollows.
var ErrNotFollowed = skyerr.New(skyerr.NotFound, "target is not followed by the authenticated account")

// Unfollow locates the follow record pointing at targetDID by paginating
// GetFollows of the authenticated user, then deletes it.
func (e *Engine) Unfollow(ctx context.Context, targetDID atmodel.DID) error {
	cursor := ""
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		page, err := e.client.GetFollows(ctx, string(e.selfDID), cursor, 100)
		if err != nil {
			return err
		}
		for _, follow := range page.Items {
			if follow.Did != string(targetDID) {
				continue
			}
			if follow.Viewer == nil || follow.Viewer.Following == nil {
				continue
			}
			rkey, parseErr := rkeyOfFollowURI(*follow.Viewer.Following)
			if parseErr != nil {
				continue
			}
			return e.authMgr.CallWithReauth(ctx, func(ctx context.Context) error {
				return e.client.DeleteRecord(ctx, string(e.selfDID), string(atmodel.CollectionFollow), rkey)
			})
		}
		if page.Cursor == "" || len(page.Items) == 0 {
			return ErrNotFollowed
		}
		cursor = page.Cursor
	}
}

// rkeyOfFollowURI extracts the rkey from a follow-record AT URI found in
// a ProfileView's Viewer.Following field.
func rkeyOfFollowURI(followURI string) (string, error) {
	parsed, err := atmodel.RecordURI(followURI).Parse()
	if err != nil {
		return "", fmt.Errorf("no following uri on viewer state: %w", err)
	}
	return parsed.RKey, nil
}
