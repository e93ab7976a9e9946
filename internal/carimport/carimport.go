// Package carimport treats the CAR repo-backup decoder as an external
// collaborator, per spec.md §1/§9: "the CAR binary format decoder...
// out of scope, only their contracts are modeled here."
package carimport

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/repo"
	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car/v2"

	"github.com/skymarshal/core/internal/atmodel"
)

// Decoder turns a downloaded CAR file into ContentItems. The default
// implementation is backed by github.com/bluesky-social/indigo/repo and
// github.com/ipld/go-car/v2; callers needing a test double can supply
// any other Decoder.
type Decoder interface {
	Decode(ctx context.Context, carPath string, did atmodel.DID) ([]atmodel.ContentItem, error)
}

// CARDecoder is the real go-car/v2 + indigo/repo backed implementation.
type CARDecoder struct{}

// NewCARDecoder builds the default Decoder.
func NewCARDecoder() *CARDecoder { return &CARDecoder{} }

// Decode reads a CAR file off disk, walks its MST via indigo/repo, and
// converts every post/like/repost record into a ContentItem the same way
// DataExporter's live-export path does.
func (CARDecoder) Decode(ctx context.Context, carPath string, did atmodel.DID) ([]atmodel.ContentItem, error) {
	f, err := os.Open(carPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blockReader, err := car.NewBlockReader(f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for {
		blk, err := blockReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buf.Write(blk.RawData())
	}

	rep, err := repo.ReadRepoFromCar(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}

	var items []atmodel.ContentItem
	err = rep.ForEach(ctx, "", func(recPath string, nodeCid cid.Cid) error {
		collection, rkey, ok := splitRecordPath(recPath)
		if !ok {
			return nil
		}

		_, val, err := rep.GetRecord(ctx, recPath)
		if err != nil {
			return nil // skip unreadable records rather than aborting the walk
		}

		uri := atmodel.Build(did, collection, rkey)
		switch v := val.(type) {
		case *bsky.FeedPost:
			ct := atmodel.ContentPost
			if v.Reply != nil {
				ct = atmodel.ContentReply
			}
			item := atmodel.ContentItem{URI: uri, ContentType: ct, Text: &v.Text}
			if t, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
				item.CreatedAt = &t
			}
			items = append(items, item)
		case *bsky.FeedLike:
			item := atmodel.ContentItem{URI: uri, ContentType: atmodel.ContentLike}
			if v.Subject != nil {
				item.RawData.SubjectURI = atmodel.RecordURI(v.Subject.Uri)
			}
			if t, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
				item.CreatedAt = &t
			}
			items = append(items, item)
		case *bsky.FeedRepost:
			item := atmodel.ContentItem{URI: uri, ContentType: atmodel.ContentRepost}
			if v.Subject != nil {
				item.RawData.SubjectURI = atmodel.RecordURI(v.Subject.Uri)
			}
			if t, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
				item.CreatedAt = &t
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// splitRecordPath splits a repo MST path "collection/rkey" into parts.
func splitRecordPath(p string) (collection, rkey string, ok bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i], p[i+1:], true
		}
	}
	return "", "", false
}

