package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"databox/internal/databox"
)

// policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage row level security policies",
}

var policyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a policy on a table or on the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		tableRef, _ := f.GetString("table")
		command, _ := f.GetString("command")
		roles, _ := f.GetStringSlice("role")
		using, _ := f.GetString("using")
		withCheck, _ := f.GetString("with-check")
		in := databox.PolicyInput{
			Name:      args[0],
			Command:   databox.PolicyCommand(strings.ToUpper(command)),
			Roles:     roles,
			Using:     using,
			WithCheck: withCheck,
		}
		return withProject(cmd, "CreatePolicy", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			tableID := ""
			if tableRef != "" {
				t, err := ws.FindTable(p.ID, tableRef)
				if err != nil {
					return err
				}
				tableID = t.ID
			}
			pol, err := ws.CreatePolicy(ctx, p.ID, tableID, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created policy %s (%s)\n", pol.Name, pol.ID)
			return nil
		})
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "ListPolicies", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			policies, err := ws.ListPolicies(p.ID)
			if err != nil {
				return err
			}
			if len(policies) == 0 {
				fmt.Println("No policies.")
				return nil
			}
			printPolicies(policies)
			return nil
		})
	},
}

func printPolicies(policies []databox.RLSPolicy) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tID\tTABLE\tCOMMAND\tROLES\tENABLED\tUSING")
	for _, pol := range policies {
		table := pol.TableName
		if table == "" {
			table = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n", pol.Name, pol.ID, table, pol.Command, strings.Join(pol.Roles, ","), pol.Enabled, pol.Using)
	}
	tw.Flush()
}

var policyEnableCmd = &cobra.Command{
	Use:   "enable POLICY",
	Short: "Enable a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPolicyEnabled(cmd, args[0], true)
	},
}

var policyDisableCmd = &cobra.Command{
	Use:   "disable POLICY",
	Short: "Disable a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPolicyEnabled(cmd, args[0], false)
	},
}

func setPolicyEnabled(cmd *cobra.Command, id string, enabled bool) error {
	return withProject(cmd, "SetPolicyEnabled", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
		if err := ws.SetPolicyEnabled(ctx, p.ID, id, enabled); err != nil {
			return err
		}
		fmt.Printf("Policy %s is now %s\n", id, onOff(enabled))
		return nil
	})
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete POLICY",
	Short: "Delete a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "DeletePolicy", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			if err := ws.DeletePolicy(ctx, p.ID, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted policy %s\n", args[0])
			return nil
		})
	},
}

func init() {
	policyCmd.AddCommand(policyCreateCmd)
	f := policyCreateCmd.Flags()
	f.StringP("table", "t", "", "Table the policy applies to (project-wide when empty)")
	f.StringP("command", "c", string(databox.CommandAll), "SELECT, INSERT, UPDATE, DELETE or ALL")
	f.StringSlice("role", nil, "Roles the policy applies to (default authenticated)")
	f.String("using", "", "USING predicate")
	f.String("with-check", "", "WITH CHECK predicate")

	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyEnableCmd)
	policyCmd.AddCommand(policyDisableCmd)
	policyCmd.AddCommand(policyDeleteCmd)

	rootCmd.AddCommand(policyCmd)
}
