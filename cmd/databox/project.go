package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/databox"
)

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		region, _ := cmd.Flags().GetString("region")
		return withWorkspace(cmd, "CreateProject", func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error {
			p, err := ws.CreateProject(ctx, args[0], description, databox.Region(region))
			if err != nil {
				return err
			}
			fmt.Printf("Created project %s (%s) in %s\n", p.Name, p.ID, p.Region.DisplayName())
			for _, k := range p.APIKeys {
				fmt.Printf("  %-12s %s\n", k.Type, k.Key)
			}
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, "ListProjects", func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error {
			projects, err := ws.ListProjects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("No projects.")
				return nil
			}
			current, _ := ws.CurrentProject()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tID\tREGION\tSTATUS\tTABLES\tCREATED")
			for _, p := range projects {
				mark := " "
				if current != nil && current.ID == p.ID {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", mark, p.Name, p.ID, p.Region, p.Status, len(p.Tables), humanize.Time(p.CreatedAt))
			}
			return tw.Flush()
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [PROJECT]",
	Short: "Show a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			projectRef = args[0]
		}
		return withProject(cmd, "ShowProject", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			fmt.Printf("Name:        %s\n", p.Name)
			fmt.Printf("ID:          %s\n", p.ID)
			fmt.Printf("Description: %s\n", p.Description)
			fmt.Printf("Region:      %s\n", p.Region.DisplayName())
			fmt.Printf("Status:      %s\n", p.Status)
			fmt.Printf("Created:     %s\n", humanize.Time(p.CreatedAt))
			fmt.Printf("Updated:     %s\n", humanize.Time(p.UpdatedAt))
			fmt.Printf("Tables:      %d\n", len(p.Tables))
			fmt.Println()
			fmt.Printf("Database:    %s\n", p.DatabaseURL)
			fmt.Printf("REST:        %s\n", p.RestURL)
			fmt.Printf("Realtime:    %s\n", p.RealtimeURL)
			fmt.Printf("Storage:     %s\n", p.StorageURL)
			fmt.Printf("Functions:   %s\n", p.EdgeFunctionsURL)
			return nil
		})
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use PROJECT",
	Short: "Select the project later commands act on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "SelectProject", func(ctx context.Context, a *app.DataboxApp) error {
			p, err := a.SelectProject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Now using project %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change a project's name, description, region or status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var u databox.ProjectUpdate
		f := cmd.Flags()
		if f.Changed("name") {
			v, _ := f.GetString("name")
			u.Name = &v
		}
		if f.Changed("description") {
			v, _ := f.GetString("description")
			u.Description = &v
		}
		if f.Changed("region") {
			v, _ := f.GetString("region")
			r := databox.Region(v)
			u.Region = &r
		}
		if f.Changed("status") {
			v, _ := f.GetString("status")
			s := databox.ProjectStatus(v)
			u.Status = &s
		}
		return withProject(cmd, "UpdateProject", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			updated, err := ws.UpdateProject(ctx, p.ID, u)
			if err != nil {
				return err
			}
			fmt.Printf("Updated project %s (%s)\n", updated.Name, updated.ID)
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete PROJECT",
	Short: "Delete a project with all its tables and keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, "DeleteProject", func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error {
			p, err := ws.FindProject(args[0])
			if err != nil {
				return err
			}
			if err := ws.DeleteProject(ctx, p.ID); err != nil {
				return err
			}
			if selected, _ := a.Identity().SelectedProject(); selected == p.ID {
				if err := a.Identity().SetSelectedProject(""); err != nil {
					return err
				}
			}
			fmt.Printf("Deleted project %s\n", p.Name)
			return nil
		})
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCreateCmd.Flags().StringP("description", "d", "", "Project description")
	projectCreateCmd.Flags().StringP("region", "r", string(databox.RegionUSEast1), "Hosting region")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectUseCmd)

	projectCmd.AddCommand(projectUpdateCmd)
	projectUpdateCmd.Flags().String("name", "", "New name")
	projectUpdateCmd.Flags().StringP("description", "d", "", "New description")
	projectUpdateCmd.Flags().StringP("region", "r", "", "New region")
	projectUpdateCmd.Flags().String("status", "", "New status (active, paused, inactive)")

	projectCmd.AddCommand(projectDeleteCmd)

	rootCmd.AddCommand(projectCmd)
}
