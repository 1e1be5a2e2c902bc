package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/databox"
)

// table command
var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage tables of the selected project",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create NAME COLUMN...",
	Short: "Create a table",
	Long: `Create a table from column specs of the form

  name:type[(len[,scale])][:pk][:autoinc][:required][:unique][:default=V][:fk=table.column]

for example "id:int:pk:autoinc" or "price:decimal(10,2):default=0".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, err := app.ParseColumns(args[1:])
		if err != nil {
			return err
		}
		return withProject(cmd, "CreateTable", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			t, err := ws.CreateTable(ctx, p.ID, args[0], columns)
			if err != nil {
				return err
			}
			fmt.Printf("Created table %s (%s) with %d column(s)\n", t.Name, t.ID, len(t.Columns))
			return nil
		})
	},
}

var tableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "ListTables", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			if len(p.Tables) == 0 {
				fmt.Println("No tables.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tCOLUMNS\tROWS\tRLS\tREALTIME")
			for _, t := range p.Tables {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", t.Name, t.ID, len(t.Columns), t.RowCount, onOff(t.RLSEnabled), onOff(t.IsRealtime))
			}
			return tw.Flush()
		})
	},
}

var tableShowCmd = &cobra.Command{
	Use:   "show TABLE",
	Short: "Show a table's schema and policies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "ShowTable", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			t, err := ws.FindTable(p.ID, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Table %s (%s): %d row(s), rls %s, realtime %s\n\n", t.Name, t.ID, t.RowCount, onOff(t.RLSEnabled), onOff(t.IsRealtime))
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tTYPE\tFLAGS\tDEFAULT")
			for _, c := range t.Columns {
				def := ""
				if c.Default != nil {
					def = c.Default.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, columnType(c), strings.Join(columnFlags(c), ","), def)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(t.Policies) > 0 {
				fmt.Println()
				printPolicies(t.Policies)
			}
			return nil
		})
	},
}

func columnType(c databox.Column) string {
	switch {
	case c.Length != nil && c.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", c.Type, *c.Length, *c.Scale)
	case c.Length != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.Length)
	}
	return string(c.Type)
}

func columnFlags(c databox.Column) []string {
	var flags []string
	if c.PrimaryKey {
		flags = append(flags, "pk")
	}
	if c.AutoIncrement {
		flags = append(flags, "autoinc")
	}
	if c.Required {
		flags = append(flags, "required")
	}
	if c.Unique {
		flags = append(flags, "unique")
	}
	if c.ForeignKey != nil {
		flags = append(flags, "fk="+c.ForeignKey.Table+"."+c.ForeignKey.Column)
	}
	return flags
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete TABLE",
	Short: "Delete a table and its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "DeleteTable", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			t, err := ws.FindTable(p.ID, args[0])
			if err != nil {
				return err
			}
			if err := ws.DeleteTable(ctx, p.ID, t.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted table %s\n", t.Name)
			return nil
		})
	},
}

var tableRLSCmd = &cobra.Command{
	Use:       "rls TABLE on|off",
	Short:     "Turn row level security on or off",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTableFlag(cmd, "ToggleRLS", args, (*databox.Workspace).ToggleRLS)
	},
}

var tableRealtimeCmd = &cobra.Command{
	Use:   "realtime TABLE on|off",
	Short: "Turn realtime updates on or off",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTableFlag(cmd, "SetRealtime", args, (*databox.Workspace).SetRealtime)
	},
}

func setTableFlag(cmd *cobra.Command, operation string, args []string, set func(*databox.Workspace, context.Context, string, string, bool) error) error {
	enabled, err := parseOnOff(args[1])
	if err != nil {
		return err
	}
	return withProject(cmd, operation, func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
		t, err := ws.FindTable(p.ID, args[0])
		if err != nil {
			return err
		}
		if err := set(ws, ctx, p.ID, t.ID, enabled); err != nil {
			return err
		}
		fmt.Printf("%s: %s is now %s\n", t.Name, cmd.Name(), onOff(enabled))
		return nil
	})
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	tableCmd.AddCommand(tableCreateCmd)
	tableCmd.AddCommand(tableListCmd)
	tableCmd.AddCommand(tableShowCmd)
	tableCmd.AddCommand(tableDeleteCmd)
	tableCmd.AddCommand(tableRLSCmd)
	tableCmd.AddCommand(tableRealtimeCmd)

	rootCmd.AddCommand(tableCmd)
}
