package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/polling"
)

// syncCmd implements: tabscope sync
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Read tabs and bookmarks from every configured browser into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		private, _ := cmd.Flags().GetBool("private")
		noBookmarks, _ := cmd.Flags().GetBool("no-bookmarks")
		analyze, _ := cmd.Flags().GetInt("analyze")
		archive, _ := cmd.Flags().GetBool("archive")
		groups, _ := cmd.Flags().GetBool("groups")
		verbose, _ := cmd.Flags().GetBool("verbose")
		every, _ := cmd.Flags().GetDuration("every")

		opts := polling.Options{
			Concurrency:    concurrency,
			IncludePrivate: private,
			SkipBookmarks:  noBookmarks,
			AnalyzeLimit:   analyze,
			ArchiveNew:     archive,
			RebuildGroups:  groups,
			Log:            utils.Log,
		}
		if verbose {
			opts.OnPageDone = func(p model.UnifiedPageInfo, isNew bool) {
				if isNew {
					fmt.Printf("+ %s\t%s\n", p.SourceType.Kind, p.URL)
				}
			}
		}

		for {
			err := withWriteLock(cmd.Context(), func(c *core.Core) error {
				res, err := polling.PollBrowsers(cmd.Context(), c, opts)
				if err != nil {
					return err
				}
				printSyncResult(res)
				return nil
			})
			if err != nil {
				return err
			}
			if every <= 0 {
				return nil
			}
			select {
			case <-cmd.Context().Done():
				return nil
			case <-time.After(every):
			}
		}
	},
}

func printSyncResult(res *polling.Result) {
	for _, b := range res.Browsers {
		utils.Log.Infof("%s: %d tabs, %d bookmarks, %d new pages, %d closed", b.Browser, b.Tabs, b.Bookmarks, b.NewPages, len(b.Closed))
		for _, err := range b.Errors {
			utils.LogError(err, string(b.Browser))
		}
	}
	if res.Analyzed > 0 {
		utils.Log.Infof("Analyzed %d pages", res.Analyzed)
	}
	if res.Archived > 0 {
		utils.Log.Infof("Archived %d pages", res.Archived)
	}
	if res.Groups > 0 {
		utils.Log.Infof("Rebuilt %d groups", res.Groups)
	}
	for _, err := range res.Errors {
		utils.LogError(err, "sync")
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Int("concurrency", 5, "Number of tabs merged concurrently per browser")
	syncCmd.Flags().Bool("private", false, "Include private/incognito tabs")
	syncCmd.Flags().Bool("no-bookmarks", false, "Do not read bookmarks")
	syncCmd.Flags().Int("analyze", 0, "Analyze up to N pages that have no summary yet")
	syncCmd.Flags().Bool("archive", false, "Archive pages seen for the first time")
	syncCmd.Flags().Bool("groups", true, "Rebuild automatic groups after syncing")
	syncCmd.Flags().BoolP("verbose", "v", false, "Print every new page")
	syncCmd.Flags().Duration("every", 0, "Keep syncing at this interval (e.g. 5m)")
}
