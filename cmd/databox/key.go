package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"databox/internal/databox"
)

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage API keys of the selected project",
}

var keyIssueCmd = &cobra.Command{
	Use:   "issue NAME",
	Short: "Issue a new API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyType, _ := cmd.Flags().GetString("type")
		return withProject(cmd, "IssueKey", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			k, err := ws.IssueKey(ctx, p.ID, args[0], databox.KeyType(keyType))
			if err != nil {
				return err
			}
			fmt.Printf("Issued %s key %s (%s)\n", k.Type, k.Name, k.ID)
			fmt.Println(k.Key)
			return nil
		})
	},
}

var keyRevokeCmd = &cobra.Command{
	Use:   "revoke KEY",
	Short: "Deactivate an API key by id or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "RevokeKey", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			id := args[0]
			for _, k := range p.APIKeys {
				if k.Name == args[0] && k.IsActive {
					id = k.ID
					break
				}
			}
			if err := ws.RevokeKey(ctx, p.ID, id); err != nil {
				return err
			}
			fmt.Printf("Revoked key %s\n", args[0])
			return nil
		})
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		showTokens, _ := cmd.Flags().GetBool("show")
		return withProject(cmd, "ListKeys", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			keys, err := ws.ListKeys(p.ID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tTYPE\tACTIVE\tCREATED\tKEY")
			for _, k := range keys {
				token := maskToken(k.Key)
				if showTokens {
					token = k.Key
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", k.Name, k.ID, k.Type, k.IsActive, humanize.Time(k.CreatedAt), token)
			}
			return tw.Flush()
		})
	},
}

func maskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}

func init() {
	keyCmd.AddCommand(keyIssueCmd)
	keyIssueCmd.Flags().StringP("type", "t", string(databox.KeyAnon), "Key type (anon or service_role)")
	keyCmd.AddCommand(keyRevokeCmd)
	keyCmd.AddCommand(keyListCmd)
	keyListCmd.Flags().Bool("show", false, "Print full key tokens")

	rootCmd.AddCommand(keyCmd)
}
