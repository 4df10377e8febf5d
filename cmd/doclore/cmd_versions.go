package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"doclore/internal/store"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Inspect and restore file version history",
}

var versionsListCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List a file's versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := findFile(a, args[0])
		if err != nil {
			return err
		}
		versions, err := a.store.ListVersions(file.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d versions\n", file.Name, len(versions))
		for _, v := range versions {
			kind := "patch"
			if v.IsFullContent {
				kind = "full"
			}
			fmt.Printf("  v%-4d %-7s %-8s %s\n", v.VersionNumber, v.Source, kind, v.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var versionsShowCmd = &cobra.Command{
	Use:   "show [file] [n]",
	Short: "Print a file's content as of version n",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := findFile(a, args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version must be a number: %q", args[1])
		}

		content, err := a.versions.Reconstruct(file.ID, n)
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

var versionsRestoreCmd = &cobra.Command{
	Use:   "restore [file] [n]",
	Short: "Restore a file to version n (recorded as a new version)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := findFile(a, args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version must be a number: %q", args[1])
		}

		content, err := a.versions.Restore(file.ID, n)
		if err != nil {
			return err
		}
		if err := a.store.UpdateFileContent(file.ID, content); err != nil {
			return err
		}
		file.Content = content
		if err := a.indexer.IndexFile(cmd.Context(), file); err != nil {
			return err
		}

		_, num, err := a.versions.Latest(file.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s to v%d (now v%d)\n", file.Name, n, num)
		return nil
	},
}

var versionsPruneKeep int

var versionsPruneCmd = &cobra.Command{
	Use:   "prune [file]",
	Short: "Drop old versions, keeping the most recent ones reconstructable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := findFile(a, args[0])
		if err != nil {
			return err
		}
		if err := a.versions.Prune(file.ID, versionsPruneKeep); err != nil {
			return err
		}
		fmt.Printf("Pruned %s to the last %d versions\n", file.Name, versionsPruneKeep)
		return nil
	},
}

// findFile resolves a file name within the --project scope (or
// globally when unset).
func findFile(a *app, name string) (*store.File, error) {
	scope, err := a.scope()
	if err != nil {
		return nil, err
	}
	return a.store.GetFileByName(scope, name)
}

func init() {
	versionsPruneCmd.Flags().IntVarP(&versionsPruneKeep, "keep", "k", 10, "versions to keep")

	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsShowCmd)
	versionsCmd.AddCommand(versionsRestoreCmd)
	versionsCmd.AddCommand(versionsPruneCmd)
}
