package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over pages, archives and closed tabs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Search(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}

		if len(res.Pages) > 0 {
			fmt.Println("--> Pages")
			printPages(res.Pages)
		}
		if len(res.Archives) > 0 {
			fmt.Println("--> Archives")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, a := range res.Archives {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.ArchivedAt.Local().Format(time.DateTime), truncateTitle(a.Title, 50), a.URL)
			}
			w.Flush()
		}
		if len(res.History) > 0 {
			fmt.Println("--> Closed tabs")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, h := range res.History {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.BrowserType, h.ClosedAt.Local().Format(time.DateTime), truncateTitle(h.Title, 50), h.URL)
			}
			w.Flush()
		}
		if len(res.Pages)+len(res.Archives)+len(res.History) == 0 {
			fmt.Println("No matches.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 20, "Maximum results per kind")
	searchCmd.Flags().Bool("json", false, "Print JSON")
}
