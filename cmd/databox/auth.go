package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/identity"
)

// passwordEnv supplies the account password for non-interactive use.
const passwordEnv = "DATABOX_PASSWORD"

func readPassword(confirm bool) (string, error) {
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	return app.NewTerminalPrompt().Passphrase("Password", confirm)
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your databox account",
}

var authRegisterCmd = &cobra.Command{
	Use:   "register EMAIL NAME",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Register", func(ctx context.Context, a *app.DataboxApp) error {
			password, err := readPassword(true)
			if err != nil {
				return err
			}
			u, err := a.Identity().Register(args[0], password, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", u.Email, u.ID)
			return nil
		})
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Login", func(ctx context.Context, a *app.DataboxApp) error {
			password, err := readPassword(false)
			if err != nil {
				return err
			}
			u, err := a.Identity().Login(args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", u.Email)
			return nil
		})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Logout", func(ctx context.Context, a *app.DataboxApp) error {
			if err := a.Identity().Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		})
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Whoami", func(ctx context.Context, a *app.DataboxApp) error {
			u, err := a.Identity().Current()
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var authProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Change your display name or avatar",
	RunE: func(cmd *cobra.Command, args []string) error {
		var u identity.ProfileUpdate
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			u.Name = &name
		}
		if cmd.Flags().Changed("avatar") {
			avatar, _ := cmd.Flags().GetString("avatar")
			u.Avatar = &avatar
		}
		return withApp(cmd, "UpdateProfile", func(ctx context.Context, a *app.DataboxApp) error {
			user, err := a.Identity().UpdateProfile(u)
			if err != nil {
				return err
			}
			printUser(user)
			return nil
		})
	},
}

func printUser(u *identity.User) {
	fmt.Printf("ID:      %s\n", u.ID)
	fmt.Printf("Email:   %s\n", u.Email)
	fmt.Printf("Name:    %s\n", u.Name)
	fmt.Printf("Avatar:  %s\n", u.Avatar)
	fmt.Printf("Joined:  %s\n", humanize.Time(u.CreatedAt))
}

func init() {
	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)
	authCmd.AddCommand(authProfileCmd)
	authProfileCmd.Flags().String("name", "", "New display name")
	authProfileCmd.Flags().String("avatar", "", "New avatar URL")

	rootCmd.AddCommand(authCmd)
}
