package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"e621dl/pkg/auth"
	"e621dl/pkg/config"
	"e621dl/pkg/tags"
	"e621dl/pkg/ui"
)

const defaultSettingsFile = ".e621dl.yaml"

// configCmd groups the settings commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings files",
	Long: `Manage e621dl settings.

Settings are loaded from, in increasing precedence:
  - Default values
  - Settings file (.e621dl.yaml or ~/.config/e621dl/config.yaml)
  - .env files
  - E621DL_* environment variables
  - Command line flags

The download configuration document (config.json) is separate: it holds the
download directory, the file naming scheme and the last run date of every tag.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a settings file with the default values",
	Long: `Create a settings file with every option at its default value.

The file is created as '.e621dl.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Long: `Show the settings after merging every source, followed by the
configuration document. The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings, config.json and the tag file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultSettingsFile
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("settings file already exists: %s", path)
	}

	if err := config.DefaultSettings().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Settings file created: " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configFile, settingsFlags(cmd))
	if err != nil {
		return err
	}

	masked := *settings
	if masked.API.APIKey != "" {
		masked.API.APIKey = auth.MaskString(masked.API.APIKey)
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	fmt.Fprintln(ui.Output(), "# settings")
	fmt.Fprint(ui.Output(), string(data))

	store := config.NewStore(afero.NewOsFs(), settings.Storage.ConfigFile)
	store.SetDiagnosticWriter(ui.Output())
	if !store.Exists() {
		return nil
	}

	doc, err := store.Load()
	if err != nil {
		return err
	}
	data, err = yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprintf(ui.Output(), "\n# %s\n", store.Path())
	fmt.Fprint(ui.Output(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configFile, settingsFlags(cmd))
	if err != nil {
		return err
	}
	ui.PrintSuccess("Settings are valid")

	fs := afero.NewOsFs()
	var errs []error

	store := config.NewStore(fs, settings.Storage.ConfigFile)
	store.SetDiagnosticWriter(ui.Output())
	if store.Exists() {
		if _, err := store.Load(); err != nil {
			errs = append(errs, err)
		} else {
			ui.PrintSuccess(store.Path() + " is valid")
		}
	}

	if exists, _ := afero.Exists(fs, settings.Grab.TagsFile); exists {
		groups, err := tags.Load(fs, settings.Grab.TagsFile)
		if err != nil {
			errs = append(errs, err)
		} else {
			ui.PrintSuccess(fmt.Sprintf("%s is valid (%d tags)", settings.Grab.TagsFile, tags.Count(groups)))
		}
	} else {
		ui.PrintWarning("Tag file not found", settings.Grab.TagsFile)
	}

	return errors.Join(errs...)
}
