package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/sector-mail-desk/internal/app"
	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the ingestion settings document",
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored settings with a YAML, JSON or TOML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsImport,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored settings with defaults applied",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

func init() {
	settingsCmd.AddCommand(settingsImportCmd, settingsShowCmd)
}

func openStore(cmd *cobra.Command) (*app.Container, error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettingsFile(args[0])
	if err != nil {
		return err
	}
	container, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Settings.Save(cmd.Context(), settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported settings for %d sectors (%d enabled)\n",
		len(settings.Sectors), len(settings.EnabledSectors()))
	return nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	container, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	settings, err := container.Settings.Get(cmd.Context())
	if err != nil {
		return err
	}
	defaults := container.Config.Ingestion
	data, err := domain.MarshalSettings(settings.WithDefaults(defaults.DefaultMaxMessages, defaults.DefaultProcessedLabel))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), json.RawMessage(data))
}
