// Package export implements DataExporter and ContentStore, spec.md §4.5.
package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/carimport"
	"github.com/skymarshal/core/internal/skyerr"
)

// Categories selects which collections DataExporter walks.
type Categories struct {
	Posts    bool
	Likes    bool
	Reposts  bool
}

// DefaultCategoryLimit is the per-collection cap DataExporter stops at.
const DefaultCategoryLimit = 1000

// DataExporter produces the authenticated user's export file, trying its
// three strategies in order: live fetch, cached-file reuse, CAR fallback.
type DataExporter struct {
	client   *atclient.Client
	decoder  carimport.Decoder
	jsonPath func(handle string) string
	carPath  func(handle string) string
	workers  int
}

// New builds a DataExporter. jsonPath/carPath mirror config.Paths'
// JSONExport/CARBackup so this package stays storage-location-agnostic.
func New(client *atclient.Client, decoder carimport.Decoder, jsonPath, carPath func(string) string, workers int) *DataExporter {
	if workers <= 0 {
		workers = 3
	}
	return &DataExporter{client: client, decoder: decoder, jsonPath: jsonPath, carPath: carPath, workers: workers}
}

// Export runs the three strategies in order and writes (or reuses) the
// JSON export file, returning its path and the items it contains.
func (d *DataExporter) Export(ctx context.Context, handle string, did atmodel.DID, categories Categories, limit int) (string, []atmodel.ContentItem, error) {
	if limit <= 0 {
		limit = DefaultCategoryLimit
	}

	items, err := d.liveExport(ctx, did, categories, limit)
	if err == nil {
		path, writeErr := d.writeExport(handle, items)
		if writeErr == nil {
			return path, items, nil
		}
	}

	if path, items, ok := d.tryCachedExport(handle); ok {
		return path, items, nil
	}

	return d.carFallback(ctx, handle, did, categories)
}

// tryCachedExport reuses the most-recently-modified <handle>.json or
// <handle>_*.json file in the export directory without calling the network.
func (d *DataExporter) tryCachedExport(handle string) (string, []atmodel.ContentItem, bool) {
	canonical := d.jsonPath(handle)
	dir := filepath.Dir(canonical)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, false
	}

	prefix := handle
	var best string
	var bestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		if name != prefix+".json" && !strings.HasPrefix(name, prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, name)
			bestMod = info.ModTime()
		}
	}
	if best == "" {
		return "", nil, false
	}

	data, err := os.ReadFile(best)
	if err != nil {
		return "", nil, false
	}
	var items []atmodel.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return "", nil, false
	}
	return best, items, true
}

// liveExport walks ListRecords per selected collection in parallel,
// bounded by d.workers, grounded on the teacher's semaphore+WaitGroup
// concurrency pattern in services/proxy-manager/health.go.
func (d *DataExporter) liveExport(ctx context.Context, did atmodel.DID, categories Categories, limit int) ([]atmodel.ContentItem, error) {
	var collections []string
	if categories.Posts {
		collections = append(collections, atmodel.CollectionPost)
	}
	if categories.Likes {
		collections = append(collections, atmodel.CollectionLike)
	}
	if categories.Reposts {
		collections = append(collections, atmodel.CollectionRepost)
	}
	if len(collections) == 0 {
		collections = []string{atmodel.CollectionPost, atmodel.CollectionLike, atmodel.CollectionRepost}
	}

	semaphore := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []atmodel.ContentItem
	var firstErr error

	for _, collection := range collections {
		wg.Add(1)
		go func(collection string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			items, err := d.fetchCollection(ctx, did, collection, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, items...)
		}(collection)
	}
	wg.Wait()

	if firstErr != nil && len(all) == 0 {
		return nil, firstErr
	}
	return all, nil
}

func (d *DataExporter) fetchCollection(ctx context.Context, did atmodel.DID, collection string, limit int) ([]atmodel.ContentItem, error) {
	var items []atmodel.ContentItem
	cursor := ""
	for len(items) < limit {
		page, err := d.client.ListRecords(ctx, string(did), collection, cursor, 100)
		if err != nil {
			return items, err
		}
		for _, rec := range page.Items {
			item, ok := convertRecord(did, collection, rec)
			if ok {
				items = append(items, item)
			}
			if len(items) >= limit {
				break
			}
		}
		if page.Cursor == "" || len(page.Items) == 0 || len(items) >= limit {
			break
		}
		cursor = page.Cursor
	}
	return items, nil
}

// convertRecord turns a raw repo record into a ContentItem, classifying
// posts with a "reply" sub-field as ContentReply per spec.md §4.5.
func convertRecord(did atmodel.DID, collection string, rec *comatproto.RepoListRecords_Record) (atmodel.ContentItem, bool) {
	uri := atmodel.RecordURI(rec.Uri)
	cid := rec.Cid

	switch collection {
	case atmodel.CollectionPost:
		post, ok := rec.Value.Val.(*bsky.FeedPost)
		if !ok {
			return atmodel.ContentItem{}, false
		}
		ct := atmodel.ContentPost
		if post.Reply != nil {
			ct = atmodel.ContentReply
		}
		item := atmodel.ContentItem{URI: uri, CID: cid, ContentType: ct, Text: &post.Text}
		if t, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
			item.CreatedAt = &t
		}
		return item, true

	case atmodel.CollectionLike:
		like, ok := rec.Value.Val.(*bsky.FeedLike)
		if !ok {
			return atmodel.ContentItem{}, false
		}
		item := atmodel.ContentItem{URI: uri, CID: cid, ContentType: atmodel.ContentLike}
		if like.Subject != nil {
			item.RawData.SubjectURI = atmodel.RecordURI(like.Subject.Uri)
		}
		if t, err := time.Parse(time.RFC3339, like.CreatedAt); err == nil {
			item.CreatedAt = &t
		}
		return item, true

	case atmodel.CollectionRepost:
		repost, ok := rec.Value.Val.(*bsky.FeedRepost)
		if !ok {
			return atmodel.ContentItem{}, false
		}
		item := atmodel.ContentItem{URI: uri, CID: cid, ContentType: atmodel.ContentRepost}
		if repost.Subject != nil {
			item.RawData.SubjectURI = atmodel.RecordURI(repost.Subject.Uri)
		}
		if t, err := time.Parse(time.RFC3339, repost.CreatedAt); err == nil {
			item.CreatedAt = &t
		}
		return item, true
	}

	_ = did
	return atmodel.ContentItem{}, false
}

func (d *DataExporter) writeExport(handle string, items []atmodel.ContentItem) (string, error) {
	path := d.jsonPath(handle)
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

// carFallback requests a full repo backup, hands the bytes to the CAR
// decoder collaborator, and deletes the backup file once imported.
func (d *DataExporter) carFallback(ctx context.Context, handle string, did atmodel.DID, categories Categories) (string, []atmodel.ContentItem, error) {
	carPath := d.carPath(handle)
	if err := d.client.DownloadRepoBackup(ctx, string(did), carPath); err != nil {
		return "", nil, skyerr.Wrap(skyerr.Network, "car backup download failed", err)
	}
	defer os.Remove(carPath)

	items, err := d.decoder.Decode(ctx, carPath, did)
	if err != nil {
		return "", nil, skyerr.Wrap(skyerr.Storage, "car decode failed", err)
	}

	items = filterByCategories(items, categories)
	path, writeErr := d.writeExport(handle, items)
	if writeErr != nil {
		return "", items, nil
	}
	return path, items, nil
}

func filterByCategories(items []atmodel.ContentItem, categories Categories) []atmodel.ContentItem {
	if !categories.Posts && !categories.Likes && !categories.Reposts {
		return items
	}
	filtered := make([]atmodel.ContentItem, 0, len(items))
	for _, item := range items {
		switch item.ContentType {
		case atmodel.ContentPost, atmodel.ContentReply:
			if categories.Posts {
				filtered = append(filtered, item)
			}
		case atmodel.ContentLike:
			if categories.Likes {
				filtered = append(filtered, item)
			}
		case atmodel.ContentRepost:
			if categories.Reposts {
				filtered = append(filtered, item)
			}
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].URI < filtered[j].URI })
	return filtered
}
