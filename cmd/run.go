package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/config"
	"github.com/Wjlljw/pdf-translator/internal/service"
	"github.com/Wjlljw/pdf-translator/pkg/file"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

type batchFlags struct {
	concurrency int
	force       bool
	recursive   bool
	noCache     bool
	target      string
	outputDir   string
	bilingual   bool
	glossary    string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 1, "Documents translated at the same time")
	cmd.Flags().BoolVar(&f.force, "force", false, "Retranslate documents whose output already exists")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Neither read nor write the chunk cache")
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Target language tag, e.g. zh or ja (default from TARGET_LANGUAGE)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Write translations here instead of next to each PDF")
	cmd.Flags().BoolVar(&f.bilingual, "bilingual", false, "Quote each source paragraph above its translation")
	cmd.Flags().StringVarP(&f.glossary, "glossary", "g", "", "JSON file of fixed term translations")
}

// options turns explicitly set flags into config options so that unset
// flags never override the environment.
func (f *batchFlags) options(cmd *cobra.Command) ([]config.Option, error) {
	var opts []config.Option
	changed := cmd.Flags().Changed
	if changed("concurrency") {
		opts = append(opts, config.WithConcurrency(f.concurrency))
	}
	if changed("force") {
		opts = append(opts, config.WithForce(f.force))
	}
	if changed("recursive") {
		opts = append(opts, config.WithRecursive(f.recursive))
	}
	if changed("no-cache") {
		opts = append(opts, config.WithCacheEnabled(!f.noCache))
	}
	if changed("output-dir") {
		opts = append(opts, config.WithOutputDir(f.outputDir))
	}
	if changed("bilingual") {
		opts = append(opts, config.WithBilingual(f.bilingual))
	}
	if changed("glossary") {
		opts = append(opts, config.WithGlossaryFile(f.glossary))
	}
	if changed("target") {
		tag, err := language.Parse(f.target)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, "invalid --target").WithContext("value", f.target)
		}
		opts = append(opts, config.WithTargetLanguage(tag))
	}
	return opts, nil
}

func loadConfig(opts ...config.Option) (*config.Config, error) {
	cfg, err := config.New(opts...)
	if err != nil {
		apperr.Report(err)
		return nil, err
	}
	if err := log.Setup(cfg.System.LogLevel, cfg.System.LogFormat, cfg.System.LogFile); err != nil {
		log.Warn("log file disabled: %v", err)
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "run <pdf|dir>...",
		Short: "Translate the given PDFs or the PDFs in the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts...)
			if err != nil {
				return err
			}

			paths, err := collectPaths(args, cfg.Processing.Recursive, cfg.Output.Suffix)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no PDF files found in %v", args)
			}

			stack, err := service.Build(cfg)
			if err != nil {
				apperr.Report(err)
				return err
			}
			defer stack.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := stack.Driver.Run(ctx, paths)
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), report.Summary())
			}
			if runErr != nil {
				return runErr
			}
			if report.Totals.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", report.Totals.Failed, len(report.Documents))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// collectPaths expands arguments into PDF paths, keeping argument order and
// dropping duplicates.
func collectPaths(args []string, recursive bool, suffix string) ([]string, error) {
	seen := make(map[string]bool)
	var ret []string
	for _, arg := range args {
		found, err := file.FindPDFs(arg, recursive, suffix)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, "cannot read input").WithContext("path", arg)
		}
		for _, p := range found {
			if !seen[p] {
				seen[p] = true
				ret = append(ret, p)
			}
		}
	}
	return ret, nil
}
