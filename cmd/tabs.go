package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/controller"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
)

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List and control the tabs of running browsers",
}

var tabsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tabs",
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetString("browser")

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BROWSER\tTAB\tACTIVE\tTITLE\tURL")
		for _, conn := range c.Connectors() {
			if only != "" && string(conn.BrowserType()) != only {
				continue
			}
			if err := conn.Connect(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", conn.BrowserType(), err)
				continue
			}
			tabs, err := conn.GetTabs(cmd.Context())
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", conn.BrowserType(), err)
				continue
			}
			for _, t := range tabs {
				active := ""
				if t.IsActive {
					active = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.BrowserType, t.ID, active, truncateTitle(t.Title, 50), t.URL)
			}
		}
		return w.Flush()
	},
}

// runOperation executes req under the writer lock and prints the record.
func runOperation(cmd *cobra.Command, req controller.Request) error {
	return withWriteLock(cmd.Context(), func(c *core.Core) error {
		rec, err := c.Execute(cmd.Context(), req)
		if rec.ID != "" {
			printRecord(rec)
		}
		return err
	})
}

func printRecord(rec model.TabOperationRecord) {
	fmt.Printf("%s %s [%s] tab=%s %s (attempts: %d", rec.Type, rec.Status, rec.Browser, rec.TabID, rec.URL, rec.Attempts)
	if rec.Fallback {
		fmt.Print(", window raised instead")
	}
	fmt.Println(")")
	if rec.FailureReason != "" {
		fmt.Println("  reason:", rec.FailureReason)
	}
}

func browserFlag(cmd *cobra.Command, name string) (model.BrowserType, error) {
	s, _ := cmd.Flags().GetString(name)
	return browser.ParseType(s)
}

var tabsCloseCmd = &cobra.Command{
	Use:   "close <tab-id>",
	Short: "Close a tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bt, err := browserFlag(cmd, "browser")
		if err != nil {
			return err
		}
		return runOperation(cmd, controller.Request{Type: model.OpClose, Browser: bt, TabID: args[0]})
	},
}

var tabsActivateCmd = &cobra.Command{
	Use:   "activate <tab-id>",
	Short: "Focus a tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bt, err := browserFlag(cmd, "browser")
		if err != nil {
			return err
		}
		return runOperation(cmd, controller.Request{Type: model.OpActivate, Browser: bt, TabID: args[0]})
	},
}

var tabsOpenCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Open a url in a new tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bt, err := browserFlag(cmd, "browser")
		if err != nil {
			return err
		}
		return runOperation(cmd, controller.Request{Type: model.OpCreate, Browser: bt, URL: args[0]})
	},
}

var tabsMigrateCmd = &cobra.Command{
	Use:   "migrate <tab-id>",
	Short: "Move a tab to another browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := browserFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := browserFlag(cmd, "to")
		if err != nil {
			return err
		}
		return withWriteLock(cmd.Context(), func(c *core.Core) error {
			m, err := c.Migrate(cmd.Context(), from, args[0], to)
			if m.Create.ID != "" {
				printRecord(m.Create)
			}
			if m.Close != nil {
				printRecord(*m.Close)
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(tabsCmd)
	tabsCmd.AddCommand(tabsListCmd, tabsCloseCmd, tabsActivateCmd, tabsOpenCmd, tabsMigrateCmd)

	tabsListCmd.Flags().String("browser", "", "Only list tabs of this browser")
	for _, c := range []*cobra.Command{tabsCloseCmd, tabsActivateCmd, tabsOpenCmd} {
		c.Flags().StringP("browser", "b", string(model.BrowserChrome), "Browser to act on")
	}
	tabsMigrateCmd.Flags().String("from", string(model.BrowserChrome), "Browser the tab is open in")
	tabsMigrateCmd.Flags().String("to", "", "Browser to open the tab in")
	tabsMigrateCmd.MarkFlagRequired("to")
}
