package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/pkg/core"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <page-id|url>...",
	Short: "Save a snapshot of the current content of pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			for _, arg := range args {
				p, err := resolvePage(cmd.Context(), c, arg)
				if err != nil {
					return err
				}
				a, err := c.ArchivePage(cmd.Context(), p.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\t%d bytes\tsha256:%s\n", a.ID, a.URL, a.FileSize, a.Checksum)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
