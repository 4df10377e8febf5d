package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories into a project",
	Long: `Extracts text, chunks it, embeds every chunk, and stores the result.
Directories are walked one level deep; unsupported file types are
skipped. Requires --project.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectName == "" {
			return fmt.Errorf("ingest requires --project")
		}

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		project, _, err := a.store.CreateProject(projectName, "")
		if err != nil {
			return err
		}

		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				n, err := a.indexer.IngestDir(cmd.Context(), project.ID, path)
				if err != nil {
					return err
				}
				fmt.Printf("Ingested %d files from %s\n", n, path)
				continue
			}
			file, err := a.indexer.IngestPath(cmd.Context(), project.ID, path)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested %s (%s, %d bytes)\n", file.Name, file.Status, file.Size)
		}
		return nil
	},
}
