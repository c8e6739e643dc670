// Package ghrelease is a client for published GitHub releases, backed by the
// "gh" CLI. Authentication is delegated entirely to gh, which reads its
// credentials from the host environment.
package ghrelease

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kjarosh/metainfo-sync/go/executil"
	"github.com/kjarosh/metainfo-sync/go/sklog"
)

// DefaultExecutable is the name of the gh binary, resolved via PATH.
const DefaultExecutable = "gh"

// Asset is a single downloadable file attached to a release, as reported by
// "gh release view --json assets".
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Release holds the details of one published release, as reported by
// "gh release view".
type Release struct {
	Assets       []Asset   `json:"assets"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
	IsPrerelease bool      `json:"isPrerelease"`
	Name         string    `json:"name"`
	PublishedAt  time.Time `json:"publishedAt"`
	URL          string    `json:"url"`
}

// Client fetches release data for a single repository.
type Client struct {
	gh   string
	repo string
}

// New returns a Client for the given "owner/name" repository, using the gh
// binary found on PATH.
func New(repo string) *Client {
	return NewWithExecutable(DefaultExecutable, repo)
}

// NewWithExecutable returns a Client that invokes the given gh executable.
func NewWithExecutable(gh, repo string) *Client {
	return &Client{
		gh:   gh,
		repo: repo,
	}
}

// List returns the tag names of up to limit published releases, newest
// first. Draft and pre-release entries are excluded by gh itself.
func (c *Client) List(ctx context.Context, limit int) ([]string, error) {
	b, err := c.run(ctx,
		"release", "list",
		"--repo", c.repo,
		"--limit", strconv.Itoa(limit),
		"--exclude-drafts",
		"--exclude-pre-releases",
		"--json", "tagName",
	)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		TagName string `json:"tagName"`
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrapf(err, "gh returned undecodable release list: %q", string(b))
	}
	tags := make([]string, 0, len(entries))
	for _, e := range entries {
		tags = append(tags, e.TagName)
	}
	return tags, nil
}

// View returns the details of the release with the given tag.
func (c *Client) View(ctx context.Context, tag string) (*Release, error) {
	b, err := c.run(ctx,
		"release", "view", tag,
		"--repo", c.repo,
		"--json", "assets,body,createdAt,isPrerelease,name,publishedAt,url",
	)
	if err != nil {
		return nil, err
	}
	var rel Release
	if err := json.Unmarshal(b, &rel); err != nil {
		return nil, errors.Wrapf(err, "gh returned an undecodable release for %s: %q", tag, string(b))
	}
	return &rel, nil
}

// run invokes gh with the given arguments and returns its stdout.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := executil.CommandContext(ctx, c.gh, args...)
	sklog.Info(cmd.String())

	b, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, errors.Wrapf(err, "gh stderr: %q stdout: %q", ee.Stderr, string(b))
		}
		return nil, errors.Wrapf(err, "failed to run %s", c.gh)
	}
	return b, nil
}
