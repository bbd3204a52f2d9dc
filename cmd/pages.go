package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List stored pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		bt, _ := cmd.Flags().GetString("browser")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		pages, err := c.ListPages(cmd.Context(), storage.ListOptions{
			Kind:     model.SourceKind(kind),
			Browser:  model.BrowserType(bt),
			Category: category,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(pages)
		}
		printPages(pages)
		return nil
	},
}

func printPages(pages []model.UnifiedPageInfo) {
	if len(pages) == 0 {
		fmt.Println("No pages found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tVISITS\tCATEGORY\tTITLE\tURL")
	for _, p := range pages {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", p.ID, p.SourceType.Kind, p.AccessCount, p.Category, truncateTitle(p.Title, 50), p.URL)
	}
	w.Flush()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateTitle(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

var pagesShowCmd = &cobra.Command{
	Use:   "show <page-id|url>",
	Short: "Print a page as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		p, err := resolvePage(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var pagesDeleteCmd = &cobra.Command{
	Use:   "delete <page-id>...",
	Short: "Delete pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			n, err := c.DeletePages(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d of %d pages.\n", n, len(args))
			return nil
		})
	},
}

var pagesAnalyzeCmd = &cobra.Command{
	Use:   "analyze [page-id|url]...",
	Short: "Fetch and analyze pages (all un-analyzed pages when none are given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			if len(args) == 0 {
				n, err := c.AnalyzePending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Printf("Analyzed %d pages.\n", n)
				return nil
			}
			for _, arg := range args {
				p, err := resolvePage(cmd.Context(), c, arg)
				if err != nil {
					return err
				}
				p, err = c.AnalyzePage(cmd.Context(), p.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s [%s] %s\n", p.URL, p.Category, p.ContentSummary.SummaryText)
			}
			return nil
		})
	},
}

var pagesDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge pages that share a normalized url",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			n, err := c.Dedupe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d duplicate pages.\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.AddCommand(pagesShowCmd, pagesDeleteCmd, pagesAnalyzeCmd, pagesDedupeCmd)

	pagesCmd.Flags().String("kind", "", "Filter by source: active_tab, bookmark, closed_tab, mixed")
	pagesCmd.Flags().String("browser", "", "Filter by browser")
	pagesCmd.Flags().String("category", "", "Filter by category")
	pagesCmd.Flags().Int("limit", 50, "Maximum number of pages (0 for all)")
	pagesCmd.Flags().Bool("json", false, "Print JSON")

	pagesAnalyzeCmd.Flags().Int("limit", 20, "Maximum number of pending pages to analyze")
}
