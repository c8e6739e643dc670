package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kjarosh/metainfo-sync/go/executil"
	"github.com/kjarosh/metainfo-sync/go/ghrelease"
	"github.com/kjarosh/metainfo-sync/metainfosync/go/metainfo"
)

const initialDoc = `<?xml version="1.0" encoding="utf-8"?>
<releases>
    <release version="1.0.0" date="2023-11-02" type="stable">
        <url>https://example.com/releases/1.0.0</url>
    </release>
</releases>
`

const syncedDoc = `<?xml version="1.0" encoding="utf-8"?>
<releases>
    <release version="1.2.0" date="2024-05-02" type="stable">
        <url>https://github.com/kjarosh/ruffle/releases/tag/v1.2.0</url>
        <description>
            <p><em>Fixed</em> bugs.</p>
        </description>
        <artifacts>
            <artifact type="source">
                <location>https://github.com/kjarosh/ruffle/archive/refs/tags/v1.2.0.zip</location>
                <filename>ruffle-v1.2.0.zip</filename>
            </artifact>
            <artifact type="binary" platform="x86_64-linux-gnu">
                <location>https://github.com/kjarosh/ruffle/releases/download/v1.2.0/ruffle-1.2.0-linux-x86_64.tar.gz</location>
                <filename>ruffle-1.2.0-linux-x86_64.tar.gz</filename>
                <size type="download">1000</size>
            </artifact>
        </artifacts>
    </release>
    <release version="1.1.0" date="2024-01-15" type="stable">
        <url>https://github.com/kjarosh/ruffle/releases/tag/v1.1.0</url>
        <description>
            <ul>
                <li>Added <em>stuff</em></li>
                <li>Fixed <em>things</em></li>
            </ul>
        </description>
        <artifacts>
            <artifact type="source">
                <location>https://github.com/kjarosh/ruffle/archive/refs/tags/v1.1.0.zip</location>
                <filename>ruffle-v1.1.0.zip</filename>
            </artifact>
        </artifacts>
    </release>
    <release version="1.0.0" date="2023-11-02" type="stable">
        <url>https://example.com/releases/1.0.0</url>
    </release>
</releases>
`

func writeInitialDoc(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "releases.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newSyncer() *Syncer {
	return New(ghrelease.NewWithExecutable("gh", "kjarosh/ruffle"), "kjarosh/ruffle", 60)
}

// fullRunFakes are the fake gh invocations of one complete run: one listing
// followed by one view per tag, oldest tag first.
func fullRunFakes() []string {
	return []string{
		"Test_FakeExe_List_TwoReleases",
		"Test_FakeExe_View_110",
		"Test_FakeExe_View_120",
	}
}

func TestSync_MergesFetchedReleases(t *testing.T) {
	path := writeInitialDoc(t, initialDoc)
	ctx := executil.FakeTestsContext(fullRunFakes()...)

	require.NoError(t, newSyncer().Sync(ctx, path))
	require.Equal(t, 3, executil.FakeCommandsReturned(ctx))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, syncedDoc, string(b))
}

func TestSync_SecondRunIsByteIdentical(t *testing.T) {
	path := writeInitialDoc(t, initialDoc)

	require.NoError(t, newSyncer().Sync(executil.FakeTestsContext(fullRunFakes()...), path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, newSyncer().Sync(executil.FakeTestsContext(fullRunFakes()...), path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, string(first), string(second))
}

func TestSync_MissingDocumentFailsBeforeAnyFetch(t *testing.T) {
	// No fake tests provided: a gh invocation would panic, so this also
	// proves that nothing is fetched when the document does not load.
	ctx := executil.FakeTestsContext()

	err := newSyncer().Sync(ctx, filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
	require.Equal(t, 0, executil.FakeCommandsReturned(ctx))
}

func TestSync_FetchFailureLeavesDocumentUntouched(t *testing.T) {
	path := writeInitialDoc(t, initialDoc)
	ctx := executil.FakeTestsContext(
		"Test_FakeExe_List_TwoReleases",
		"Test_FakeExe_View_Failure",
	)

	err := newSyncer().Sync(ctx, path)
	require.Error(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, initialDoc, string(b))
}

// A release flagged as a pre-release is classified as a snapshot even though
// the listing excludes pre-releases upstream; this pins the current behavior
// of the per-release flag.
func TestSync_PrereleaseFlagYieldsSnapshot(t *testing.T) {
	path := writeInitialDoc(t, initialDoc)
	ctx := executil.FakeTestsContext(
		"Test_FakeExe_List_Nightly",
		"Test_FakeExe_View_Nightly",
	)

	require.NoError(t, newSyncer().Sync(ctx, path))

	doc, err := metainfo.Load(path)
	require.NoError(t, err)
	rels := doc.Releases()
	require.Len(t, rels, 2)
	require.Equal(t, "nightly-2024-05-03", rels[0].SelectAttrValue("version", ""))
	require.Equal(t, "snapshot", rels[0].SelectAttrValue("type", ""))
}

func Test_FakeExe_List_TwoReleases(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	args := executil.OriginalArgs()
	require.Equal(t, []string{
		"gh", "release", "list",
		"--repo", "kjarosh/ruffle",
		"--limit", "60",
		"--exclude-drafts",
		"--exclude-pre-releases",
		"--json", "tagName",
	}, args)

	fmt.Print(`[{"tagName":"v1.2.0"},{"tagName":"v1.1.0"}]`)
	os.Exit(0)
}

func Test_FakeExe_View_110(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	args := executil.OriginalArgs()
	require.Equal(t, []string{
		"gh", "release", "view", "v1.1.0",
		"--repo", "kjarosh/ruffle",
		"--json", "assets,body,createdAt,isPrerelease,name,publishedAt,url",
	}, args)

	fmt.Print(`{
		"assets": [],
		"body": "- Added *stuff*\n- Fixed *things*\n",
		"createdAt": "2024-01-15T08:00:00Z",
		"isPrerelease": false,
		"name": "Release 1.1.0",
		"publishedAt": "2024-01-15T08:30:00Z",
		"url": "https://github.com/kjarosh/ruffle/releases/tag/v1.1.0"
	}`)
	os.Exit(0)
}

func Test_FakeExe_View_120(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	args := executil.OriginalArgs()
	require.Equal(t, "v1.2.0", args[3])

	fmt.Print(`{
		"assets": [
			{
				"name": "ruffle-1.2.0-linux-x86_64.tar.gz",
				"url": "https://github.com/kjarosh/ruffle/releases/download/v1.2.0/ruffle-1.2.0-linux-x86_64.tar.gz",
				"size": 1000
			},
			{
				"name": "ruffle-1.2.0-readme.txt",
				"url": "https://github.com/kjarosh/ruffle/releases/download/v1.2.0/ruffle-1.2.0-readme.txt",
				"size": 12
			}
		],
		"body": "**Fixed** bugs.",
		"createdAt": "2024-05-02T12:00:00Z",
		"isPrerelease": false,
		"name": "Release 1.2.0",
		"publishedAt": "2024-05-02T13:04:05Z",
		"url": "https://github.com/kjarosh/ruffle/releases/tag/v1.2.0"
	}`)
	os.Exit(0)
}

func Test_FakeExe_View_Failure(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	fmt.Fprint(os.Stderr, "release not found")
	os.Exit(1)
}

func Test_FakeExe_List_Nightly(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	fmt.Print(`[{"tagName":"nightly-2024-05-03"}]`)
	os.Exit(0)
}

func Test_FakeExe_View_Nightly(t *testing.T) {
	if !executil.IsCallingFakeCommand() {
		return
	}

	fmt.Print(`{
		"assets": [],
		"body": "Nightly build.",
		"createdAt": "2024-05-03T00:00:00Z",
		"isPrerelease": true,
		"name": "Nightly 2024-05-03",
		"publishedAt": "2024-05-03T00:30:00Z",
		"url": "https://github.com/kjarosh/ruffle/releases/tag/nightly-2024-05-03"
	}`)
	os.Exit(0)
}
