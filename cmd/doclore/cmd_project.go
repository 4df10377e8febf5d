package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"doclore/internal/store"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectDescription string

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project (no-op if it already exists)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		project, created, err := a.store.CreateProject(args[0], projectDescription)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Created project %s (%s)\n", project.Name, project.ID)
		} else {
			fmt.Printf("Project %s already exists (%s)\n", project.Name, project.ID)
		}
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with file and chunk counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.store.ListProjects()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects. Create one with: doclore project create <name>")
			return nil
		}
		for _, p := range projects {
			stats, err := a.store.GetProjectStats(p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %-9s %4d files %6d chunks %8d bytes\n",
				p.Name, p.Status, stats.FileCount, stats.ChunkCount, stats.TotalBytes)
			if p.Description != "" {
				fmt.Printf("    %s\n", p.Description)
			}
		}
		return nil
	},
}

var projectDeleteForce bool

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a project and all its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.store.GetProjectByName(args[0])
		if err != nil {
			return err
		}
		stats, err := a.store.GetProjectStats(project.ID)
		if err != nil {
			return err
		}

		if !projectDeleteForce {
			fmt.Printf("Delete project %s with %d files? [y/N] ", project.Name, stats.FileCount)
			var answer string
			fmt.Scanln(&answer)
			if !strings.HasPrefix(strings.ToLower(answer), "y") {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := a.store.DeleteProject(project.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted project %s (%d files)\n", project.Name, stats.FileCount)
		return nil
	},
}

var projectFilesCmd = &cobra.Command{
	Use:   "files [name]",
	Short: "List a project's files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.store.GetProjectByName(args[0])
		if err != nil {
			return err
		}
		files, err := a.store.ListFiles(store.Scope{ProjectID: project.ID})
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%-32s %-5s %-10s %8d bytes\n", f.Name, f.Type, f.Status, f.Size)
		}
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectDeleteCmd.Flags().BoolVarP(&projectDeleteForce, "force", "f", false, "skip confirmation")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectFilesCmd)
}
