package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/pkg/core"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List smart groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		groups, err := c.Store.ListGroups(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No groups. Run 'tabscope groups rebuild' after a sync.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tCRITERIA")
		for _, g := range groups {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.ID, g.Type, g.Name, g.Criteria)
		}
		return w.Flush()
	},
}

var groupsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute domain and category groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			groups, err := c.RebuildGroups(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Built %d groups.\n", len(groups))
			return nil
		})
	},
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "List the pages of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		pages, err := c.GroupPages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPages(pages)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsRebuildCmd, groupsShowCmd)
}
