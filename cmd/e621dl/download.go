package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"e621dl/internal/downloader"
	"e621dl/pkg/auth"
	"e621dl/pkg/blacklist"
	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	"e621dl/pkg/grabber"
	"e621dl/pkg/logger"
	"e621dl/pkg/storage"
	"e621dl/pkg/tags"
	"e621dl/pkg/ui"
)

var (
	// Download flags
	tagsFile          string
	documentFile      string
	safeMode          string
	maxPages          int
	requestsPerSecond int
	notifications     bool
	accountName       string
)

// downloadCmd runs one download session
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Grab posts for every tag in the tag file and download them",
	Long: `Download the media of every post matching the tag file.

The session:
  1. loads config.json (created with defaults when missing)
  2. loads the tag file (a commented template is created when missing)
  3. optionally switches to the safe host e926.net
  4. searches every tag group, dropping blacklisted and deleted posts
  5. downloads each set one file at a time, skipping files already on disk
  6. records today's date for every searched tag in config.json

Credentials are read from settings, E621DL_LOGIN/E621DL_API_KEY, or the
accounts stored with 'e621dl auth login'. Without them the API is searched
anonymously.`,
	Example: `  # Download everything in tags.txt
  e621dl download

  # Use another tag file and never ask for safe mode
  e621dl download --tags-file fav.txt --safe-mode never

  # Use a stored account and limit pagination
  e621dl download --account myname --max-pages 2`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
}

// addDownloadFlags registers the session flags; the root command shares them
// so that a bare 'e621dl' accepts the same options
func addDownloadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&tagsFile, "tags-file", "t", "", "tag file to read (default tags.txt)")
	f.StringVar(&documentFile, "config-file", "", "configuration document (default config.json)")
	f.StringVar(&safeMode, "safe-mode", "", "safe mode policy: ask, always or never")
	f.IntVar(&maxPages, "max-pages", 0, "maximum result pages per tag (0 for no limit)")
	f.IntVar(&requestsPerSecond, "requests-per-second", 0, "API request rate limit")
	f.BoolVar(&notifications, "notifications", false, "send a desktop notification when the session ends")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
}

// settingsFlags collects the flags the user actually set
func settingsFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	f := cmd.Flags()

	if f.Changed("tags-file") {
		flags["tags-file"] = tagsFile
	}
	if f.Changed("config-file") {
		flags["config-file"] = documentFile
	}
	if f.Changed("safe-mode") {
		flags["safe-mode"] = safeMode
	}
	if f.Changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if f.Changed("requests-per-second") {
		flags["requests-per-second"] = requestsPerSecond
	}
	if f.Changed("notifications") {
		flags["notifications"] = notifications
	}
	if f.Changed("pause-on-error") {
		flags["pause-on-error"] = pauseOnError
	}
	if f.Changed("log-level") {
		flags["log-level"] = logLevel
	}
	return flags
}

func runDownload(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configFile, settingsFlags(cmd))
	if err != nil {
		return err
	}
	pauseOnError = settings.Prompt.PauseOnError

	if err := logger.Initialize(&settings.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("e621dl starting")

	notifier := ui.NewNotifier(settings.Notifications.Enabled)

	totals, err := runSession(cmd.Context(), afero.NewOsFs(), settings, log)
	if err != nil {
		log.WithError(err).Error("Session failed")
		notifier.SessionFailed(err)
		return err
	}

	if totals != nil {
		ui.PrintSessionTotals(*totals)
		ui.PrintSuccess("[ALL POST SETS DOWNLOADED]")
		notifier.SessionFinished(*totals)
	}
	return nil
}

// runSession performs one load → grab → download → save cycle. It returns
// nil totals when there was nothing to download.
func runSession(ctx context.Context, fs afero.Fs, settings *config.Settings, log logger.Logger) (*ui.SessionTotals, error) {
	store := config.NewStore(fs, settings.Storage.ConfigFile)
	store.SetDiagnosticWriter(ui.Output())
	if err := store.Ensure(); err != nil {
		return nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	created, err := tags.Ensure(fs, settings.Grab.TagsFile)
	if err != nil {
		return nil, err
	}
	if created {
		ui.PrintWarning("Created a new tag file", settings.Grab.TagsFile)
		ui.PrintInfo("Next step", "add your tags to it and run e621dl again")
		return nil, nil
	}

	groups, err := tags.Load(fs, settings.Grab.TagsFile)
	if err != nil {
		return nil, err
	}
	if tags.Count(groups) == 0 {
		ui.PrintWarning("No tags found in", settings.Grab.TagsFile)
		return nil, nil
	}
	ui.PrintInfo("Tags", strconv.Itoa(tags.Count(groups)))

	if err := resolveCredentials(settings, log); err != nil {
		return nil, err
	}

	client := e621.NewClient(e621.OptionsFromSettings(settings, log))

	if _, err := downloader.ApplySafeMode(strings.ToLower(settings.Prompt.SafeMode), os.Stdin, os.Stdout, client); err != nil {
		return nil, fmt.Errorf("safe mode prompt: %w", err)
	}
	if client.IsSafe() {
		ui.PrintInfo("Host", settings.API.SafeBaseURL+" (safe mode)")
	}

	ui.PrintHighlight("[GRABBING POSTS]")
	result, err := grabber.FromTags(ctx, groups, client, cfg, grabber.Options{
		PostsPerPage: settings.Grab.PostsPerPage,
		MaxPages:     settings.Grab.MaxPages,
		Blacklist:    blacklist.New(settings.Grab.Blacklist),
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	ui.PrintInfo("Posts found", strconv.Itoa(result.Total()))

	ui.PrintHighlight("[DOWNLOADING]")
	orch := downloader.New(client, storage.NewManager(fs), downloader.Options{
		DownloadDirectory: cfg.DownloadDirectory,
		CreateDirectories: cfg.CreateDirectories,
		Progress:          consoleProgress,
		Logger:            log,
	})
	if err := orch.DownloadAll(ctx, result.GrabbedPosts, result.GrabbedSinglePosts); err != nil {
		return nil, err
	}

	if err := store.Save(cfg); err != nil {
		return nil, err
	}

	stats := orch.Stats()
	return &ui.SessionTotals{
		Sets:       stats.Sets,
		Downloaded: stats.Downloaded,
		Skipped:    stats.Skipped,
		Bytes:      stats.Bytes,
	}, nil
}

// resolveCredentials fills the API login and key from the credential stores
// when settings do not carry both
func resolveCredentials(settings *config.Settings, log logger.Logger) error {
	if accountName != "" {
		settings.API.Login = accountName
		settings.API.APIKey = ""
	}
	if settings.API.Login != "" && settings.API.APIKey != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		if accountName != "" {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		log.WithError(err).Debug("Credential stores unavailable, searching anonymously")
		return nil
	}

	err = manager.ApplyTo(&settings.API)
	switch {
	case err == nil:
		log.WithField("account", settings.API.Login).Info("Using stored credentials")
		ui.PrintInfo("Using account", settings.API.Login)
		return nil
	case errors.Is(err, auth.ErrCredentialsNotFound) && accountName == "":
		settings.API.Login = ""
		log.Debug("No stored credentials, searching anonymously")
		return nil
	default:
		return fmt.Errorf("account %q: %w", settings.API.Login, err)
	}
}

func consoleProgress(label string, total int) downloader.Progress {
	return ui.NewSetProgress(ui.Output(), label, total)
}
