// Package syncer performs one synchronization pass between the published
// releases of a GitHub repository and a metainfo releases document.
package syncer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kjarosh/metainfo-sync/go/ghrelease"
	"github.com/kjarosh/metainfo-sync/go/sklog"
	"github.com/kjarosh/metainfo-sync/go/util"
	"github.com/kjarosh/metainfo-sync/metainfosync/go/metainfo"
)

// Syncer fetches published releases and merges them into a releases
// document. Processing is fully sequential; any failure aborts the run
// before the document is written.
type Syncer struct {
	client *ghrelease.Client
	repo   string
	limit  int
}

// New returns a Syncer for the given "owner/name" repository, fetching at
// most limit releases per run.
func New(client *ghrelease.Client, repo string, limit int) *Syncer {
	return &Syncer{
		client: client,
		repo:   repo,
		limit:  limit,
	}
}

// Sync loads the releases document at metainfoPath, merges in every
// published release, and writes the document back. The file is written
// exactly once, after all releases have been processed successfully.
func (s *Syncer) Sync(ctx context.Context, metainfoPath string) error {
	doc, err := metainfo.Load(metainfoPath)
	if err != nil {
		return err
	}

	tags, err := s.client.List(ctx, s.limit)
	if err != nil {
		return errors.Wrapf(err, "failed to list the releases of %s", s.repo)
	}
	sklog.Infof("Releases to synchronize: %v", tags)

	// The listing arrives newest first; process oldest first so that
	// genuinely new versions end up at the front of the document in order.
	for _, tag := range util.Reverse(tags) {
		rel, err := s.buildRelease(ctx, tag)
		if err != nil {
			return err
		}
		doc.Merge(rel)
	}

	return doc.Save(metainfoPath)
}

func (s *Syncer) buildRelease(ctx context.Context, tag string) (*metainfo.Release, error) {
	sklog.Infof("Generating info for release %s", tag)

	view, err := s.client.View(ctx, tag)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch release %s", tag)
	}
	rel, err := metainfo.BuildRelease(s.repo, tag, view)
	if err != nil {
		return nil, err
	}

	sklog.Infof("  Version: %s", rel.Version)
	sklog.Infof("  Date: %s", rel.Date)
	sklog.Infof("  Type: %s", rel.Type)
	sklog.Infof("  URL: %s", rel.URL)
	sklog.Infof("  Artifact count: %d", len(rel.Artifacts))
	return rel, nil
}
