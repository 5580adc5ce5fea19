package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/neboloop/hitomi/internal/auth"
	"github.com/neboloop/hitomi/internal/keyring"
	"github.com/neboloop/hitomi/internal/toolcall"
)

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hitomi",
		Short: "Hitomi - floating assistant widget",
		Long: `Hitomi is a tiny hedgehog that floats over your screen, chats with you,
listens when you ask it to and opens pages in its own browser pane.

Just type 'hitomi' to start the overlay with the console harness.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = color.NoColor || noColor
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverlay(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform data directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(ParseCmd())
	rootCmd.AddCommand(SignInCmd())
	rootCmd.AddCommand(SignOutCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}

// ParseCmd shows how a model reply is split into text and tool calls.
func ParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [reply]",
		Short: "Parse tool-call tokens out of a reply",
		Long: `Parse a chat reply the way the overlay does and print the visible text
and any browser actions it requested.

Example:
  hitomi parse '{{tool:android_browser_open|url=example.com}} Opening it.'`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res := toolcall.Parse(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			label := color.New(color.Bold)
			_, _ = label.Fprint(out, "text: ")
			fmt.Fprintln(out, res.VisibleText)
			if res.OpenURL != "" {
				_, _ = label.Fprint(out, "open: ")
				fmt.Fprintln(out, res.OpenURL)
			}
			if res.ReadURL != "" {
				_, _ = label.Fprint(out, "read: ")
				fmt.Fprintln(out, res.ReadURL)
			}
		},
	}
}

// SignInCmd stores a session obtained from the Hitomi app.
func SignInCmd() *cobra.Command {
	var sess auth.Session

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Store a session token for the chat service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := auth.NewManager(authConfig(cfg), sessionStore())
			if err := m.SignIn(sess); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", m.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&sess.AccessToken, "access-token", "", "access token (JWT)")
	cmd.Flags().StringVar(&sess.RefreshToken, "refresh-token", "", "refresh token")
	cmd.Flags().StringVar(&sess.Email, "email", "", "account email")
	cmd.Flags().StringVar(&sess.DisplayName, "name", "", "display name, e.g. @handle")
	_ = cmd.MarkFlagRequired("access-token")
	return cmd
}

// SignOutCmd forgets the stored session.
func SignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := auth.NewManager(authConfig(cfg), sessionStore()).SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// VersionCmd prints the build version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hitomi %s\n", Version)
		},
	}
}

// sessionStore uses the OS keychain when it works and memory otherwise.
func sessionStore() auth.Store {
	if keyring.Available() {
		return auth.NewKeyringStore()
	}
	return &auth.MemoryStore{}
}
