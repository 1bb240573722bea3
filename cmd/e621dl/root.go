package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"e621dl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	noLogo     bool

	// pauseOnError is resolved from --pause-on-error and the settings file
	pauseOnError bool
)

// rootCmd runs a download session when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "e621dl",
	Short: "Download e621 posts for the tags in your tag file",
	Long: `e621dl downloads the media of every post matching the tag groups in a tag
file (tags.txt by default) into a deduplicated directory layout.

Files already on disk are never fetched twice, and each tag remembers the date
of its last run so later sessions only search for new posts.

Running e621dl without a subcommand is the same as 'e621dl download'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetOutput(io.Discard)
		}

		if !noLogo && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
	RunE: runDownload,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		if pauseOnError {
			ui.WaitForEnter(os.Stdin, os.Stderr, "Press ENTER to exit...")
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "settings file (default is .e621dl.yaml or ~/.config/e621dl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the logo")
	rootCmd.PersistentFlags().BoolVar(&pauseOnError, "pause-on-error", false, "wait for ENTER before exiting on error")

	addDownloadFlags(rootCmd)

	rootCmd.SetVersionTemplate(`e621dl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
