package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/config"
)

func newConfigCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective settings, or save them to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.WithLLMOptional())
			if err != nil {
				return err
			}

			settings := cfg.Settings()
			if save {
				path := config.SettingsFilePath()
				if err := config.WriteSettingsFile(path, settings); err != nil {
					return apperr.Wrap(err, apperr.KindConfig, "write settings file").WithContext("path", path)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "settings written to %s\n", path)
				return nil
			}

			if settings.API.APIKey != "" {
				settings.API.APIKey = "<redacted>"
			}
			data, err := json.MarshalIndent(settings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Write the effective settings to SETTINGS_FILE")
	return cmd
}
