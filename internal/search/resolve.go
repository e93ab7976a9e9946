package search

import (
	"context"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
)

// ResolveSubjectHandles fills RawData.SubjectHandle on every like/repost
// item by resolving its subject URI's DID to a handle, in batches of ≤25
// (spec.md §4.3 step 6). Items without a parseable subject URI, or whose
// profile lookup fails, are left with an empty SubjectHandle rather than
// aborting the batch — this mirrors the rest of the pipeline's "never
// abort on a single failure" posture. Search itself stays a pure function;
// callers resolve handles once, before filtering on SubjectHandleContains.
func ResolveSubjectHandles(ctx context.Context, client *atclient.Client, items []atmodel.ContentItem) {
	dids := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		if item.ContentType != atmodel.ContentLike && item.ContentType != atmodel.ContentRepost {
			continue
		}
		if item.RawData.SubjectURI == "" {
			continue
		}
		parsed, err := item.RawData.SubjectURI.Parse()
		if err != nil {
			continue
		}
		did := string(parsed.DID)
		if !seen[did] {
			seen[did] = true
			dids = append(dids, did)
		}
	}
	if len(dids) == 0 {
		return
	}

	handleOf := make(map[string]string, len(dids))
	for start := 0; start < len(dids); start += 25 {
		end := start + 25
		if end > len(dids) {
			end = len(dids)
		}
		profiles, err := client.GetProfiles(ctx, dids[start:end])
		if err != nil {
			continue
		}
		for _, p := range profiles {
			handleOf[p.Did] = p.Handle
		}
	}

	for i := range items {
		item := &items[i]
		if item.ContentType != atmodel.ContentLike && item.ContentType != atmodel.ContentRepost {
			continue
		}
		if item.RawData.SubjectURI == "" {
			continue
		}
		parsed, err := item.RawData.SubjectURI.Parse()
		if err != nil {
			continue
		}
		item.RawData.SubjectHandle = handleOf[string(parsed.DID)]
	}
}
