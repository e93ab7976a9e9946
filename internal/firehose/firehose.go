// Package firehose relays the public Bluesky event stream, per spec.md
// §4.10/§6: "subscribe to a public Bluesky event stream (delegated to an
// external collaborator), relay each post with derived sentiment/language
// metadata; expose counts and a recent-post ring buffer." The transport
// (websocket dial + indigo repo-stream scheduling + CAR-block record
// decode) is grounded on watzon-lining/firehose's Firehose.Subscribe and
// PostFromCommitEvent; the external-collaborator boundary is the Source
// interface below, matching internal/carimport's Decoder pattern for the
// other binary-format collaborator spec.md names.
package firehose

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/sequential"
	"github.com/gorilla/websocket"
	car "github.com/ipld/go-car/v2"
	"github.com/pemistahl/lingua-go"

	"github.com/skymarshal/core/internal/analytics"
)

// DefaultURL is the public subscribeRepos endpoint on bsky.network.
const DefaultURL = "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"

// Post is a relayed firehose post, enriched with derived metadata.
type Post struct {
	DID       string    `json:"did"`
	URI       string    `json:"uri"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Sentiment float64   `json:"sentiment"`
	CreatedAt time.Time `json:"created_at"`
	SeenAt    time.Time `json:"seen_at"`
}

// Stats is the periodic broadcaster payload (spec.md §6's `firehose:stats`).
type Stats struct {
	TotalPosts     int64     `json:"total_posts"`
	PostsPerSecond float64   `json:"posts_per_second"`
	Since          time.Time `json:"since"`
}

// Source is the external-collaborator boundary: a subscription to the raw
// repo-commit event stream, decoupled from any particular transport so
// tests can supply a fake without dialing the network.
type Source interface {
	Subscribe(ctx context.Context, onPost func(Post)) error
}

// IndigoSource is the default Source, wired to
// github.com/bluesky-social/indigo's events.HandleRepoStream over a
// gorilla/websocket connection, exactly as watzon-lining/firehose does,
// generalized from that package's generic commit callbacks to a
// post-only relay.
type IndigoSource struct {
	URL      string
	Timeout  time.Duration
	detector lingua.LanguageDetector
}

// NewIndigoSource builds the default Source. It builds a lingua-go
// detector restricted to Bluesky's most common languages, matching the
// library's documented "restrict the language set for speed" guidance
// rather than loading every trained model.
func NewIndigoSource(url string, timeout time.Duration) *IndigoSource {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Spanish, lingua.Portuguese, lingua.French,
			lingua.German, lingua.Japanese, lingua.Korean, lingua.Italian,
			lingua.Dutch, lingua.Indonesian,
		).
		WithPreloadedLanguageModels().
		Build()
	return &IndigoSource{URL: url, Timeout: timeout, detector: detector}
}

// Subscribe dials the firehose and decodes app.bsky.feed.post creates into
// Posts, reconnecting with a fixed backoff on stream error until ctx is
// cancelled.
func (s *IndigoSource) Subscribe(ctx context.Context, onPost func(Post)) error {
	for {
		err := s.subscribeOnce(ctx, onPost)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		return nil
	}
}

func (s *IndigoSource) subscribeOnce(ctx context.Context, onPost func(Post)) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.Timeout}
	conn, _, err := dialer.DialContext(ctx, s.URL, http.Header{})
	if err != nil {
		return fmt.Errorf("firehose: dial: %w", err)
	}
	defer conn.Close()

	rsc := &events.RepoStreamCallbacks{
		RepoCommit: func(evt *atproto.SyncSubscribeRepos_Commit) error {
			for _, op := range evt.Ops {
				if op.Action != "create" || op.Cid == nil {
					continue
				}
				if !isPostPath(op.Path) {
					continue
				}
				post, err := decodePostOp(evt, op)
				if err != nil {
					continue
				}
				post.Language = s.detectLanguage(post.Text)
				post.Sentiment = analytics.AnalyzeSentiment(post.Text).Score
				onPost(post)
			}
			return nil
		},
	}

	sched := sequential.NewScheduler("skymarshal-firehose", rsc.EventHandler)
	return events.HandleRepoStream(ctx, conn, sched)
}

func (s *IndigoSource) detectLanguage(text string) string {
	if s.detector == nil || text == "" {
		return ""
	}
	lang, ok := s.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return lang.String()
}

func isPostPath(path string) bool {
	const prefix = "app.bsky.feed.post/"
	return len(path) > len(prefix) && path[:len(prefix)] == prefix
}

// decodePostOp finds op's block among evt.Blocks (a CAR-formatted byte
// slice, the same binary shape internal/carimport decodes for repo
// backups) and CBOR-unmarshals it into a bsky.FeedPost, grounded on
// watzon-lining/firehose's RepoOperation.DecodeRecord.
func decodePostOp(evt *atproto.SyncSubscribeRepos_Commit, op *atproto.SyncSubscribeRepos_RepoOp) (Post, error) {
	block, err := findBlock(evt.Blocks, op.Cid.String())
	if err != nil {
		return Post{}, err
	}

	var rec bsky.FeedPost
	if err := rec.UnmarshalCBOR(bytes.NewReader(block)); err != nil {
		return Post{}, fmt.Errorf("firehose: decode post: %w", err)
	}

	post := Post{
		DID:    evt.Repo,
		URI:    fmt.Sprintf("at://%s/%s", evt.Repo, op.Path),
		Text:   rec.Text,
		SeenAt: time.Now().UTC(),
	}
	if t, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
		post.CreatedAt = t
	}
	return post, nil
}

// findBlock scans a CAR byte slice for the block matching cidStr, using
// go-car/v2's reader the same way internal/carimport does for full repo
// backups.
func findBlock(blocks []byte, cidStr string) ([]byte, error) {
	br, err := car.NewBlockReader(bytes.NewReader(blocks))
	if err != nil {
		return nil, err
	}
	for {
		blk, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blk.Cid().String() == cidStr {
			return blk.RawData(), nil
		}
	}
	return nil, fmt.Errorf("firehose: block %s not found", cidStr)
}

// Relay owns a Source subscription, a bounded ring buffer of recent posts,
// and a counters/broadcast loop, grounded on spec.md §5's description of
// the firehose relay as "two cooperative loops: a reader... and a stats
// broadcaster... that share an atomic running flag."
type Relay struct {
	source     Source
	bufferSize int

	mu      sync.Mutex
	ring    []Post
	ringPos int

	total   atomic.Int64
	running atomic.Bool
	since   time.Time

	onPost  func(Post)
	onStats func(Stats)
}

// NewRelay builds a Relay with a ring buffer of bufferSize recent posts.
func NewRelay(source Source, bufferSize int) *Relay {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Relay{source: source, bufferSize: bufferSize}
}

// Start launches the reader loop (blocking receive via Source.Subscribe)
// and the stats broadcaster (emits every 1s), returning once both are
// running. onPost/onStats are invoked from the reader/broadcaster
// goroutines respectively and must not block.
func (r *Relay) Start(ctx context.Context, onPost func(Post), onStats func(Stats)) {
	r.onPost = onPost
	r.onStats = onStats
	r.since = time.Now().UTC()
	r.running.Store(true)

	go r.readLoop(ctx)
	go r.statsLoop(ctx)
}

// Stop clears the shared running flag; the broadcaster loop observes it
// at its next tick and exits.
func (r *Relay) Stop() {
	r.running.Store(false)
}

func (r *Relay) readLoop(ctx context.Context) {
	defer r.running.Store(false)
	_ = r.source.Subscribe(ctx, func(p Post) {
		r.mu.Lock()
		if len(r.ring) < r.bufferSize {
			r.ring = append(r.ring, p)
		} else {
			r.ring[r.ringPos] = p
			r.ringPos = (r.ringPos + 1) % r.bufferSize
		}
		r.mu.Unlock()

		r.total.Add(1)
		if r.onPost != nil {
			r.onPost(p)
		}
	})
}

func (r *Relay) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.running.Load() {
				return
			}
			total := r.total.Load()
			elapsed := time.Since(r.since).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(total) / elapsed
			}
			if r.onStats != nil {
				r.onStats(Stats{TotalPosts: total, PostsPerSecond: round2(rate), Since: r.since})
			}
		}
	}
}

// Recent returns a snapshot of the ring buffer, oldest first.
func (r *Relay) Recent() []Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Post, len(r.ring))
	if len(r.ring) < r.bufferSize {
		copy(out, r.ring)
		return out
	}
	for i := range r.ring {
		out[i] = r.ring[(r.ringPos+i)%r.bufferSize]
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
