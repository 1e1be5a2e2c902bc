package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/databox"
)

// row command
var rowCmd = &cobra.Command{
	Use:   "row",
	Short: "Manage rows of a table",
	Long: `Manage rows of a table.

Fields are given as name=value, which the column type parses, or as
name:=json, e.g. price:=9.99, meta:='{"a":1}' or note:=null to clear a field.`,
}

var rowAddCmd = &cobra.Command{
	Use:   "add TABLE FIELD...",
	Short: "Insert a row",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := app.ParseAssignments(args[1:])
		if err != nil {
			return err
		}
		return withTable(cmd, "AddRow", args[0], func(ctx context.Context, ws *databox.Workspace, p *databox.Project, t *databox.Table) error {
			row, err := ws.AddRow(ctx, p.ID, t.ID, payload)
			if err != nil {
				return err
			}
			fmt.Printf("Inserted row %d into %s\n", row.ID, t.Name)
			return nil
		})
	},
}

var rowListCmd = &cobra.Command{
	Use:   "list TABLE",
	Short: "List rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTable(cmd, "ListRows", args[0], func(ctx context.Context, ws *databox.Workspace, p *databox.Project, t *databox.Table) error {
			if len(t.Rows) == 0 {
				fmt.Println("No rows.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			header := []string{"#", "ROWID"}
			for _, c := range t.Columns {
				header = append(header, c.Name)
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for i, r := range t.Rows {
				cells := []string{strconv.Itoa(i), strconv.FormatInt(r.ID, 10)}
				for _, c := range t.Columns {
					if v := r.Get(c.Name); v != nil {
						cells = append(cells, v.String())
					} else {
						cells = append(cells, "NULL")
					}
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
			return tw.Flush()
		})
	},
}

var rowUpdateCmd = &cobra.Command{
	Use:   "update TABLE INDEX FIELD...",
	Short: "Change fields of a row",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		byID, _ := cmd.Flags().GetBool("id")
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid row %q: %w", args[1], err)
		}
		payload, err := app.ParseAssignments(args[2:])
		if err != nil {
			return err
		}
		return withTable(cmd, "UpdateRow", args[0], func(ctx context.Context, ws *databox.Workspace, p *databox.Project, t *databox.Table) error {
			var row databox.Row
			if byID {
				row, err = ws.UpdateRowByID(ctx, p.ID, t.ID, n, payload)
			} else {
				row, err = ws.UpdateRow(ctx, p.ID, t.ID, int(n), payload)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Updated row %d of %s\n", row.ID, t.Name)
			return nil
		})
	},
}

var rowDeleteCmd = &cobra.Command{
	Use:   "delete TABLE INDEX",
	Short: "Delete a row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		byID, _ := cmd.Flags().GetBool("id")
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid row %q: %w", args[1], err)
		}
		return withTable(cmd, "DeleteRow", args[0], func(ctx context.Context, ws *databox.Workspace, p *databox.Project, t *databox.Table) error {
			if byID {
				err = ws.DeleteRowByID(ctx, p.ID, t.ID, n)
			} else {
				err = ws.DeleteRow(ctx, p.ID, t.ID, int(n))
			}
			if err != nil {
				return err
			}
			fmt.Printf("Deleted row %s of %s\n", args[1], t.Name)
			return nil
		})
	},
}

// withTable resolves TABLE in the current project before running fn.
func withTable(cmd *cobra.Command, operation, ref string, fn func(ctx context.Context, ws *databox.Workspace, p *databox.Project, t *databox.Table) error) error {
	return withProject(cmd, operation, func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
		t, err := ws.FindTable(p.ID, ref)
		if err != nil {
			return err
		}
		return fn(ctx, ws, p, t)
	})
}

func init() {
	rowCmd.AddCommand(rowAddCmd)
	rowCmd.AddCommand(rowListCmd)
	rowCmd.AddCommand(rowUpdateCmd)
	rowCmd.AddCommand(rowDeleteCmd)
	rowUpdateCmd.Flags().Bool("id", false, "Treat INDEX as a stable row id")
	rowDeleteCmd.Flags().Bool("id", false, "Treat INDEX as a stable row id")

	rootCmd.AddCommand(rowCmd)
}
