package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/config"
	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/service"
)

func newReportCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recent run reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.WithLLMOptional())
			if err != nil {
				return err
			}

			store, err := persistence.NewSQLiteStore(cfg.DBPath())
			if err != nil {
				return apperr.Wrap(err, apperr.KindCache, "open cache database").WithContext("path", cfg.DBPath())
			}
			defer store.Close()

			reports, err := service.LoadReports(cmd.Context(), store, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintln(cmd.OutOrStdout(), r.Summary())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}
