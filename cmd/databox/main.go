package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/config"
	"databox/internal/databox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var (
	verbose    bool
	projectRef string
)

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a DataboxApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "CreateProject", "AddRow").
func newApp(cmd *cobra.Command, operation string) (*app.DataboxApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewDataboxApp(cmd.Context(), cfg, operation, app.Options{
		Verbose:    verbose,
		Passphrase: app.NewTerminalPrompt(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn with a fresh app and records its error on the operation.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.DataboxApp) error) error {
	a, err := newApp(cmd, operation)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := fn(cmd.Context(), a); err != nil {
		a.Fail(err)
		return err
	}
	return nil
}

// withWorkspace runs fn against the logged-in user's workspace.
func withWorkspace(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error) error {
	return withApp(cmd, operation, func(ctx context.Context, a *app.DataboxApp) error {
		ws, err := a.Workspace(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, a, ws)
	})
}

// withProject runs fn against the project named by --project, or the
// selected project when the flag is not given.
func withProject(cmd *cobra.Command, operation string, fn func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error) error {
	return withWorkspace(cmd, operation, func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error {
		p, err := a.ResolveProject(ctx, projectRef)
		if err != nil {
			return err
		}
		return fn(ctx, ws, p)
	})
}

var rootCmd = &cobra.Command{
	Use:           "databox",
	Short:         "Manage databox projects, tables and credentials",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.LoadEnvFiles(".env")
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the record store",
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the store schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Migrate", func(ctx context.Context, a *app.DataboxApp) error {
			migrated, err := a.Migrate()
			if err != nil {
				return err
			}
			if migrated {
				fmt.Println("Store schema is up to date.")
			} else {
				fmt.Println("Store has no schema to migrate.")
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage across all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, "Stats", func(ctx context.Context, a *app.DataboxApp, ws *databox.Workspace) error {
			s := ws.Stats()
			fmt.Printf("Projects:     %d\n", s.TotalProjects)
			fmt.Printf("Tables:       %d\n", s.TotalTables)
			fmt.Printf("Rows:         %d\n", s.TotalRows)
			fmt.Printf("Active keys:  %d\n", s.ActiveKeys)
			fmt.Printf("Storage used: %s\n", s.StorageUsed)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every project to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withApp(cmd, "Export", func(ctx context.Context, a *app.DataboxApp) error {
			return a.Export(ctx, os.Stdout, format)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log output to stderr")
	rootCmd.PersistentFlags().StringVarP(&projectRef, "project", "p", "", "Project name or id (defaults to the selected project)")

	storeCmd.AddCommand(storeMigrateCmd)

	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "json", "Output format (json or yaml)")
}
