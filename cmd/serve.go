package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/tabscope/internal/server"
	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/polling"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tabscope HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		user, _ := cmd.Flags().GetString("user")
		pass, _ := cmd.Flags().GetString("pass")
		syncEvery, _ := cmd.Flags().GetDuration("sync-every")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lock, err := utils.NewDBLock(cfg.DB.Path)
		if err != nil {
			return err
		}
		// The server writes for as long as it runs.
		if err := lock.Lock(cmd.Context()); err != nil {
			return err
		}
		defer lock.Unlock()

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		if syncEvery > 0 {
			go func(ctx context.Context) {
				ticker := time.NewTicker(syncEvery)
				defer ticker.Stop()
				for {
					res, err := polling.PollBrowsers(ctx, c, polling.Options{RebuildGroups: true, Log: utils.Log})
					if err != nil {
						utils.LogError(err, "background sync")
					} else {
						printSyncResult(res)
					}
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}(cmd.Context())
		}

		return server.New(c, user, pass).Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().String("user", "", "Basic auth username")
	serveCmd.Flags().String("pass", "", "Basic auth password")
	serveCmd.Flags().Duration("sync-every", 0, "Sync browsers in the background at this interval (0 to disable)")
}
