// skymctl is the single-account command-line client: every verb below
// talks to the same internal packages skymarshald's HTTP facade wraps,
// with no HTTP hop, grounded on the teacher's cmd/*/main.go cli.App
// entrypoints (urfave/cli/v2 verb dispatch, flag-per-option).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/auth"
	"github.com/skymarshal/core/internal/carimport"
	"github.com/skymarshal/core/internal/config"
	"github.com/skymarshal/core/internal/deletion"
	"github.com/skymarshal/core/internal/export"
	"github.com/skymarshal/core/internal/network"
	"github.com/skymarshal/core/internal/search"
)

// toolkit bundles the collaborators every verb needs, built fresh per
// invocation from environment + on-disk session state.
type toolkit struct {
	paths    config.Paths
	settings *config.SettingsManager
	client   *atclient.Client
	authMgr  *auth.Manager
	store    *export.ContentStore
}

func newToolkit() *toolkit {
	paths := config.DefaultPaths()
	_ = os.MkdirAll(paths.Root, 0o755)
	settings := config.NewSettingsManager(paths.Settings())

	client := atclient.New(atclient.Config{
		Handle:    os.Getenv("BLUESKY_HANDLE"),
		Password:  os.Getenv("BLUESKY_PASSWORD"),
		PDSHost:   config.GetEnvOrDefault("PDS_HOST", "https://bsky.social"),
		Timeout:   30 * time.Second,
		MaxPoints: 3000,
		Window:    5 * time.Minute,
	})
	authMgr := auth.NewManager(client, paths.SessionBlob())
	exporter := export.New(client, carimport.NewCARDecoder(), paths.JSONExport, paths.CARBackup, settings.Settings.CategoryWorkers)
	store := export.NewContentStore(exporter, client)

	return &toolkit{paths: paths, settings: settings, client: client, authMgr: authMgr, store: store}
}

// currentSession resumes the on-disk session blob, requiring a prior
// `skymctl login`.
func (t *toolkit) currentSession(ctx context.Context) (*atmodel.Session, error) {
	sess, err := t.authMgr.ResumeSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("no active session, run `skymctl login` first: %w", err)
	}
	return sess, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:  "skymctl",
		Usage: "manage a Bluesky account's content, network, and exports from the command line",
		Commands: []*cli.Command{
			loginCommand(),
			searchCommand(),
			deleteCommand(),
			exportCommand(),
			networkFetchCommand(),
			cleanupAnalyzeCommand(),
			settingsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authenticate and persist a session blob",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "handle", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"BLUESKY_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			t := newToolkit()
			sess, err := t.authMgr.Login(c.Context, c.String("handle"), c.String("password"))
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s (%s)\n", sess.Handle, sess.DID)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search cached content for the logged-in account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keywords", Usage: "comma-separated keywords"},
			&cli.StringFlag{Name: "sort", Value: string(atmodel.SortNewest)},
			&cli.IntFlag{Name: "limit", Value: 50},
		},
		Action: func(c *cli.Context) error {
			t := newToolkit()
			sess, err := t.currentSession(c.Context)
			if err != nil {
				return err
			}

			categories := export.Categories{Posts: true, Likes: true, Reposts: true}
			items, err := t.store.EnsureLoaded(c.Context, sess.Handle, sess.DID, categories, t.settings.Settings.DownloadLimitDefault, false)
			if err != nil {
				return err
			}

			filter := atmodel.SearchFilter{
				Sort:                           atmodel.SortMode(c.String("sort")),
				Limit:                          c.Int("limit"),
				UseSubjectEngagementForReposts: t.settings.Settings.UseSubjectEngagementForReposts,
			}
			if kw := c.String("keywords"); kw != "" {
				filter.Keywords = strings.Split(kw, ",")
			}

			results, total := search.Search(items, filter)
			fmt.Printf("%d of %d matched\n", len(results), total)
			return printJSON(results)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete one or more record URIs from the authenticated account",
		ArgsUsage: "uri [uri...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one at:// URI is required")
			}
			t := newToolkit()
			sess, err := t.currentSession(c.Context)
			if err != nil {
				return err
			}

			uris := make([]atmodel.RecordURI, 0, c.NArg())
			for _, a := range c.Args().Slice() {
				uris = append(uris, atmodel.RecordURI(a))
			}

			engine := deletion.NewEngine(t.client, t.authMgr, sess.DID, t.store)
			deleted, errs := engine.Delete(c.Context, uris)
			fmt.Printf("deleted %d of %d\n", deleted, len(uris))
			for uri, err := range errs {
				fmt.Printf("  failed %s: %v\n", uri, err)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the authenticated account's content to a JSON export file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: export.DefaultCategoryLimit},
		},
		Action: func(c *cli.Context) error {
			t := newToolkit()
			sess, err := t.currentSession(c.Context)
			if err != nil {
				return err
			}
			categories := export.Categories{Posts: true, Likes: true, Reposts: true}
			exporter := export.New(t.client, carimport.NewCARDecoder(), t.paths.JSONExport, t.paths.CARBackup, t.settings.Settings.CategoryWorkers)
			path, items, err := exporter.Export(c.Context, sess.Handle, sess.DID, categories, c.Int("limit"))
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d items to %s\n", len(items), path)
			return nil
		},
	}
}

func networkFetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "network-fetch",
		Usage: "fetch and analyze a handle's follower/following graph",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "handle", Required: true},
			&cli.StringFlag{Name: "mode", Value: string(network.ModeBalanced)},
		},
		Action: func(c *cli.Context) error {
			t := newToolkit()
			fetcher := network.New(t.client, t.settings.Settings.CategoryWorkers)
			opts := network.DefaultOptions()
			opts.Mode = network.Mode(c.String("mode"))
			opts.Progress = func(operation string, current, total int) {
				fmt.Printf("  %s (%d/%d)\n", operation, current, total)
			}
			snapshot, err := fetcher.Fetch(c.Context, string(atmodel.NormalizeHandle(c.String("handle"))), opts)
			if err != nil {
				return err
			}
			return printJSON(snapshot)
		},
	}
}

func cleanupAnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup-analyze",
		Usage: "score the authenticated account's follows for likely bot/low-value accounts",
		Action: func(c *cli.Context) error {
			t := newToolkit()
			sess, err := t.currentSession(c.Context)
			if err != nil {
				return err
			}

			profiles, err := loadFollowingProfilesForCLI(c.Context, t.client, string(sess.DID))
			if err != nil {
				return err
			}
			return printJSON(deletion.AnalyzeFollowingQuality(profiles))
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "print the current persisted user settings",
		Action: func(c *cli.Context) error {
			t := newToolkit()
			return printJSON(t.settings.Settings)
		},
	}
}

// loadFollowingProfilesForCLI mirrors internal/api's handlers_cleanup.go
// pagination so the CLI verb and the HTTP facade score identical input.
func loadFollowingProfilesForCLI(ctx context.Context, client *atclient.Client, did string) ([]atmodel.Profile, error) {
	handles := make([]string, 0, 256)
	cursor := ""
	for {
		page, err := client.GetFollows(ctx, did, cursor, 100)
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

	now := time.Now()
	profiles := make([]atmodel.Profile, 0, len(handles))
	for start := 0; start < len(handles); start += 25 {
		end := start + 25
		if end > len(handles) {
			end = len(handles)
		}
		batch, err := client.GetProfiles(ctx, handles[start:end])
		if err != nil {
			continue
		}
		for _, p := range batch {
			prof := atmodel.Profile{DID: atmodel.DID(p.Did), Handle: p.Handle, LastUpdated: now}
			if p.DisplayName != nil {
				prof.DisplayName = *p.DisplayName
			}
			if p.Description != nil {
				prof.Description = *p.Description
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
			profiles = append(profiles, prof)
		}
	}
	return profiles, nil
}
