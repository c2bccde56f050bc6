package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Wjlljw/pdf-translator/pkg/log"
)

var version = "dev"

func main() {
	err := newRootCmd().Execute()
	_ = log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdf-translator",
		Short: "Translate academic PDFs with an LLM, resuming from cached chunks",
		Long: `pdf-translator splits each PDF into paragraph chunks, protects formulas,
translates chunk by chunk and caches every finished chunk so an interrupted
run picks up where it stopped.

Configuration comes from the environment (.env is loaded when present) and an
optional JSON settings file named by SETTINGS_FILE (default config.json).`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdf-translator %s\n", version)
		},
	}
}
