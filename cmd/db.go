package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/core"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the tabscope database",
}

// shellCmd opens the sqlite3 CLI on the database, or runs a single query.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open sqlite3 on the tabscope database",
	Long: `Open sqlite3 on the tabscope database. With --query, run one statement
and exit. FTS tables (pages_fts, archives_fts, history_fts) accept MATCH queries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath, err := utils.GetAbsDBPath(cfg.DB.Path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("no database at %s, run `tabscope sync` first", dbPath)
		}
		bin, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 not found in PATH")
		}

		sqlite := func(extra ...string) *exec.Cmd {
			c := exec.CommandContext(cmd.Context(), bin, append([]string{"-header", "-column", dbPath}, extra...)...)
			c.Stdout, c.Stderr = os.Stdout, os.Stderr
			return c
		}

		if query, _ := cmd.Flags().GetString("query"); query != "" {
			return sqlite(query).Run()
		}

		fmt.Println("Tables:")
		if err := sqlite(".tables").Run(); err != nil {
			utils.Log.Warnf("Listing tables: %v", err)
		}
		fmt.Println("Ctrl+D to exit.")
		sh := sqlite()
		sh.Stdin = os.Stdin
		return sh.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the pages, archives and history in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.Store.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if stats.Pages == 0 {
			fmt.Println("No data in the database to generate stats. Run 'tabscope sync' first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		printCounts(w, "SOURCE", stats.PagesByKind)
		fmt.Fprintln(w, " \t \t")
		printCounts(w, "BROWSER", stats.PagesByBrowser)
		fmt.Fprintln(w, " \t \t")
		printCounts(w, "CONTENT TYPE", stats.PagesByContentType)
		fmt.Fprintln(w, " \t \t")
		fmt.Fprintf(w, "PAGES\t%d\t\n", stats.Pages)
		fmt.Fprintf(w, "ANALYZED\t%d\t\n", stats.Analyzed)
		fmt.Fprintf(w, "ARCHIVES\t%d\t\n", stats.Archives)
		fmt.Fprintf(w, "CLOSED TABS\t%d\t\n", stats.History)
		fmt.Fprintf(w, "GROUPS\t%d\t\n", stats.Groups)
		fmt.Fprintf(w, "SCHEMA\tv%d\t\n", stats.SchemaVersion)

		return w.Flush()
	},
}

func printCounts(w *tabwriter.Writer, header string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s\tPAGES\t\n", header)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\t\n", k, counts[k])
	}
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop closed-tab history older than the given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			var cutoff time.Time
			if olderThan > 0 {
				cutoff = time.Now().Add(-olderThan)
			}
			_, n, err := c.Cleanup(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d history entries.\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringP("query", "q", "", "Run a single SQL statement and exit")
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().Duration("older-than", 90*24*time.Hour, "Age of history entries to remove")
}
