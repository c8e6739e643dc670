// metainfosync synchronizes an appstream metainfo releases file with the
// published releases of a GitHub repository. Release data is fetched through
// the gh CLI, so the host environment must provide gh and its credentials.
package main

import (
	"github.com/urfave/cli/v2"

	"github.com/kjarosh/metainfo-sync/go/ghrelease"
	"github.com/kjarosh/metainfo-sync/go/sklog"
	"github.com/kjarosh/metainfo-sync/metainfosync/go/syncer"
)

func main() {
	app := &cli.App{
		Name:  "metainfosync",
		Usage: "Sync a metainfo releases XML file with the published GitHub releases of a project.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "repo",
				Value: "kjarosh/ruffle",
				Usage: "GitHub repository in owner/name form.",
			},
			&cli.StringFlag{
				Name:     "metainfo",
				Required: true,
				Usage:    "Path to the metainfo releases XML file to update.",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 60,
				Usage: "Maximum number of releases to fetch.",
			},
			&cli.StringFlag{
				Name:  "gh",
				Value: ghrelease.DefaultExecutable,
				Usage: "Path to the gh executable.",
			},
		},
		Action: func(c *cli.Context) error {
			repo := c.String("repo")
			path := c.String("metainfo")
			sklog.Infof("Metainfo releases path: %s", path)
			sklog.Infof("Syncing metainfo releases of %s", repo)

			client := ghrelease.NewWithExecutable(c.String("gh"), repo)
			return syncer.New(client, repo, c.Int("limit")).Sync(c.Context, path)
		},
	}
	app.RunAndExitOnError()
}
