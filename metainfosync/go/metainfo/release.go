package metainfo

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/kjarosh/metainfo-sync/go/ghrelease"
	"github.com/kjarosh/metainfo-sync/metainfosync/go/sanitize"
)

const (
	// Release types.
	TypeStable   = "stable"
	TypeSnapshot = "snapshot"

	// Artifact types.
	ArtifactSource = "source"
	ArtifactBinary = "binary"
)

// Artifact is one downloadable file belonging to a release. Platform is only
// set for binary artifacts; Size is the download size in bytes, negative
// when unknown (source artifacts).
type Artifact struct {
	Type     string
	Platform string
	Location string
	Filename string
	Size     int64
}

// Release is one versioned entry of the metainfo releases document.
// Version is the identity key within the document.
type Release struct {
	Version     string
	Date        string
	Type        string
	URL         string
	Description *etree.Element
	Artifacts   []Artifact
}

// binaryPlatforms maps release asset filename suffixes to the platform
// triple recorded in the metainfo. Assets matching none of the suffixes are
// not artifacts. Ordered so the table is trivially extensible.
var binaryPlatforms = []struct {
	suffix   string
	platform string
}{
	{"-linux-x86_64.tar.gz", "x86_64-linux-gnu"},
	{"-windows-x86_32.zip", "i386-windows-msvc"},
	{"-windows-x86_64.zip", "x86_64-windows-msvc"},
	{"-macos-universal.tar.gz", "any-macos-any"},
}

// ClassifyAsset returns the platform triple for a binary release asset, or
// ok=false if the filename matches no known suffix and the asset should be
// ignored.
func ClassifyAsset(filename string) (platform string, ok bool) {
	for _, bp := range binaryPlatforms {
		if strings.HasSuffix(filename, bp.suffix) {
			return bp.platform, true
		}
	}
	return "", false
}

// BuildRelease assembles the metainfo release record for one published
// release of the given "owner/name" repository.
func BuildRelease(repo, tag string, view *ghrelease.Release) (*Release, error) {
	desc, err := sanitize.Description(view.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build the description of %s", tag)
	}

	rel := &Release{
		Version:     strings.TrimPrefix(tag, "v"),
		Date:        view.PublishedAt.UTC().Format("2006-01-02"),
		Type:        TypeStable,
		URL:         view.URL,
		Description: desc,
	}
	// Note: the release listing already excludes pre-releases, so this
	// branch is not expected to trigger; it mirrors the per-release flag
	// regardless.
	if view.IsPrerelease {
		rel.Type = TypeSnapshot
	}

	// Every release gets a synthetic artifact pointing at the source
	// archive for the tag.
	project := path.Base(repo)
	rel.Artifacts = append(rel.Artifacts, Artifact{
		Type:     ArtifactSource,
		Location: fmt.Sprintf("https://github.com/%s/archive/refs/tags/%s.zip", repo, tag),
		Filename: fmt.Sprintf("%s-%s.zip", project, tag),
		Size:     -1,
	})
	for _, asset := range view.Assets {
		filename := assetFilename(asset.URL)
		platform, ok := ClassifyAsset(filename)
		if !ok {
			continue
		}
		rel.Artifacts = append(rel.Artifacts, Artifact{
			Type:     ArtifactBinary,
			Platform: platform,
			Location: asset.URL,
			Filename: filename,
			Size:     asset.Size,
		})
	}
	return rel, nil
}

// assetFilename extracts the filename from an asset's download URL.
func assetFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// element renders the release as a <release> element.
func (r *Release) element() *etree.Element {
	el := etree.NewElement("release")
	el.CreateAttr("version", r.Version)
	el.CreateAttr("date", r.Date)
	el.CreateAttr("type", r.Type)

	el.CreateElement("url").SetText(r.URL)
	el.AddChild(r.Description)

	artifacts := el.CreateElement("artifacts")
	for _, a := range r.Artifacts {
		ae := artifacts.CreateElement("artifact")
		ae.CreateAttr("type", a.Type)
		if a.Platform != "" {
			ae.CreateAttr("platform", a.Platform)
		}
		ae.CreateElement("location").SetText(a.Location)
		ae.CreateElement("filename").SetText(a.Filename)
		if a.Size >= 0 {
			size := ae.CreateElement("size")
			size.CreateAttr("type", "download")
			size.SetText(strconv.FormatInt(a.Size, 10))
		}
	}
	return el
}
