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

var authConfigCmd = &cobra.Command{
	Use:   "auth-config",
	Short: "Show or change end-user authentication settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var u databox.AuthConfigUpdate
		changed := false
		for name, field := range map[string]**bool{
			"email":      &u.EnableEmailAuth,
			"magic-link": &u.EnableMagicLink,
			"oauth":      &u.EnableOAuth,
		} {
			if f.Changed(name) {
				v, _ := f.GetBool(name)
				*field = &v
				changed = true
			}
		}
		if f.Changed("providers") {
			names, _ := f.GetStringSlice("providers")
			u.OAuthProviders = make([]databox.OAuthProvider, 0, len(names))
			for _, n := range names {
				u.OAuthProviders = append(u.OAuthProviders, databox.OAuthProvider(strings.ToLower(n)))
			}
			changed = true
		}
		if f.Changed("session-timeout") {
			v, _ := f.GetInt("session-timeout")
			u.SessionTimeout = &v
			changed = true
		}

		return withProject(cmd, "UpdateAuthConfig", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			cfg := &p.AuthConfig
			if changed {
				updated, err := ws.UpdateAuthConfig(ctx, p.ID, u)
				if err != nil {
					return err
				}
				cfg = updated
			}
			providers := make([]string, 0, len(cfg.OAuthProviders))
			for _, pr := range cfg.OAuthProviders {
				providers = append(providers, string(pr))
			}
			fmt.Printf("Email auth:      %s\n", onOff(cfg.EnableEmailAuth))
			fmt.Printf("Magic link:      %s\n", onOff(cfg.EnableMagicLink))
			fmt.Printf("OAuth:           %s\n", onOff(cfg.EnableOAuth))
			fmt.Printf("Providers:       %s\n", strings.Join(providers, ","))
			fmt.Printf("Session timeout: %ds\n", cfg.SessionTimeout)
			return nil
		})
	},
}

var storageConfigCmd = &cobra.Command{
	Use:   "storage-config",
	Short: "Show or change file storage settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var u databox.StorageConfigUpdate
		changed := false
		if f.Changed("max-file-size") {
			v, _ := f.GetString("max-file-size")
			u.MaxFileSize = &v
			changed = true
		}
		if f.Changed("mime") {
			u.AllowedMimeTypes, _ = f.GetStringSlice("mime")
			changed = true
		}
		return withProject(cmd, "UpdateStorageConfig", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			sc := p.StorageConfig
			if changed {
				if err := ws.UpdateStorageConfig(ctx, p.ID, u); err != nil {
					return err
				}
				updated, err := ws.GetProject(p.ID)
				if err != nil {
					return err
				}
				sc = updated.StorageConfig
			}
			fmt.Printf("Max file size:  %s\n", sc.MaxFileSize)
			fmt.Printf("Allowed types:  %s\n", strings.Join(sc.AllowedMimeTypes, ","))
			fmt.Printf("Buckets:        %d\n", len(sc.Buckets))
			return nil
		})
	},
}

// bucket command
var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage storage buckets",
}

var bucketCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a storage bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		public, _ := f.GetBool("public")
		limit, _ := f.GetString("limit")
		mimes, _ := f.GetStringSlice("mime")
		in := databox.BucketInput{Name: args[0], Public: public, FileSizeLimit: limit, AllowedMimeTypes: mimes}
		return withProject(cmd, "CreateBucket", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			b, err := ws.CreateBucket(ctx, p.ID, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created bucket %s (%s)\n", b.Name, b.ID)
			return nil
		})
	},
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List storage buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "ListBuckets", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tPUBLIC\tLIMIT\tTYPES")
			for _, b := range p.StorageConfig.Buckets {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", b.Name, b.ID, b.Public, b.FileSizeLimit, strings.Join(b.AllowedMimeTypes, ","))
			}
			return tw.Flush()
		})
	},
}

var bucketDeleteCmd = &cobra.Command{
	Use:   "delete BUCKET",
	Short: "Delete a storage bucket by id or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, "DeleteBucket", func(ctx context.Context, ws *databox.Workspace, p *databox.Project) error {
			id := args[0]
			for _, b := range p.StorageConfig.Buckets {
				if b.Name == args[0] {
					id = b.ID
					break
				}
			}
			if err := ws.DeleteBucket(ctx, p.ID, id); err != nil {
				return err
			}
			fmt.Printf("Deleted bucket %s\n", args[0])
			return nil
		})
	},
}

func init() {
	af := authConfigCmd.Flags()
	af.Bool("email", true, "Allow email and password sign-in")
	af.Bool("magic-link", false, "Allow magic link sign-in")
	af.Bool("oauth", false, "Allow OAuth sign-in")
	af.StringSlice("providers", nil, "OAuth providers (google, github, discord)")
	af.Int("session-timeout", 3600, "Session timeout in seconds")

	sf := storageConfigCmd.Flags()
	sf.String("max-file-size", "", "Largest accepted file, e.g. 50MB")
	sf.StringSlice("mime", nil, "Allowed mime types")

	bf := bucketCreateCmd.Flags()
	bf.Bool("public", false, "Serve files without authentication")
	bf.String("limit", "", "File size limit, e.g. 10MB (default is the project maximum)")
	bf.StringSlice("mime", nil, "Allowed mime types (default any)")

	bucketCmd.AddCommand(bucketCreateCmd)
	bucketCmd.AddCommand(bucketListCmd)
	bucketCmd.AddCommand(bucketDeleteCmd)

	rootCmd.AddCommand(authConfigCmd)
	rootCmd.AddCommand(storageConfigCmd)
	rootCmd.AddCommand(bucketCmd)
}
