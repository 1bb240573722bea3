package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"e621dl/pkg/auth"
	"e621dl/pkg/ui"
)

var (
	skipGuide bool
	logoutAll bool
)

// authCmd groups the credential commands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage e621 API credentials",
	Long: `Manage stored e621 logins and API keys.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables E621DL_LOGIN and E621DL_API_KEY (read only)

Never share your API key or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store an e621 API key securely",
	Long: `Store an e621 login and API key in the system keychain or encrypted file.

The API key is read without echo. Create one under Account > Manage API Access
on e621.net.`,
	Example: `  # Interactive login
  e621dl auth login

  # Login with username, skipping the guide
  e621dl auth login myname --no-guide`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Example: `  # Remove one account
  e621dl auth logout myname

  # Remove every stored account
  e621dl auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts, newest first, with masked API keys.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&skipGuide, "no-guide", false, "do not print the API key guide")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if !skipGuide {
		auth.ShowAPIKeyGuide(os.Stdout)
		fmt.Println()
	}

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		username, err = auth.ReadLine(os.Stdin, os.Stdout, "e621 username: ")
		if err != nil {
			return err
		}
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		update, err := ui.AskYesNo(os.Stdin, os.Stdout, fmt.Sprintf("Account '%s' already exists. Update its API key", username))
		if err != nil {
			return err
		}
		if !update {
			return nil
		}
	}

	apiKey, err := auth.ReadSecret(os.Stdin, os.Stdout, "API key (hidden): ")
	if err != nil {
		return err
	}

	account := &auth.Account{Username: username, APIKey: apiKey}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + username)
	ui.PrintInfo("API key", auth.MaskString(apiKey))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if err := manager.Delete(account.Username); err != nil {
				ui.PrintWarning("Failed to remove "+account.Username, err)
				continue
			}
			ui.PrintSuccess("Account removed: " + account.Username)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a username or --all is required")
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		fmt.Fprintln(ui.Output(), "Run 'e621dl auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		ui.PrintInfo(masked.Username, fmt.Sprintf("%s (updated %s)", masked.APIKey, masked.LastModified.Format("2006-01-02 15:04")))
	}
	return nil
}
