package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the document base with the sync directory",
	Long: `Runs one bidirectional reconciliation pass between the database and the
sync directory (one subdirectory per project): the newer side wins per
file, and files unknown to the database are imported.

With --watch, keeps running and imports filesystem changes as they
happen until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		// Print sync events as they happen.
		go func() {
			for ev := range a.syncer.Events() {
				if ev.Winner != "" {
					fmt.Printf("%s %s/%s (%s wins)\n", ev.Type, ev.Project, ev.File, ev.Winner)
				} else {
					fmt.Printf("%s %s/%s\n", ev.Type, ev.Project, ev.File)
				}
			}
		}()

		if syncWatch {
			fmt.Printf("Watching %s (ctrl-c to stop)\n", a.cfg.Sync.Dir)
			return a.syncer.Watch(cmd.Context())
		}
		return a.syncer.SyncOnce(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "watch for filesystem changes")
}
