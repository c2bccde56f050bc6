package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/config"
	"github.com/Wjlljw/pdf-translator/internal/httpapi"
	"github.com/Wjlljw/pdf-translator/internal/service"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newScheduleCmd() *cobra.Command {
	var (
		flags  batchFlags
		dirs   []string
		expr   string
		addr   string
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Translate new PDFs in watched directories on a cron schedule",
		Long: `schedule scans WATCH_DIRS (and every --dir) whenever CRON_EXPR fires and
translates PDFs that have no output yet. A status API with live progress is
served on HTTP_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule.CronExpr = expr
			}
			if cmd.Flags().Changed("addr") {
				cfg.Schedule.HTTPAddr = addr
			}
			cfg.Schedule.WatchDirs = append(cfg.Schedule.WatchDirs, dirs...)
			if len(cfg.Schedule.WatchDirs) == 0 {
				return apperr.New(apperr.KindConfig, "no directories to watch; set WATCH_DIRS or pass --dir")
			}

			stack, err := service.Build(cfg)
			if err != nil {
				apperr.Report(err)
				return err
			}
			defer stack.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine := cron.New()
			sched := newScheduler(cfg, stack, engine)
			srv := httpapi.NewServer(stack.Hub, stack.Store,
				httpapi.WithScheduler(sched),
				httpapi.WithBaseContext(ctx),
			)

			if runNow {
				go func() {
					if _, err := sched.RunOnce(ctx); err != nil {
						log.Error("initial run failed: %v", err)
					}
				}()
			}
			return runWithComponents(ctx, cfg.Schedule.HTTPAddr, sched, engine, srv)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&dirs, "dir", nil, "Directory to watch (repeatable)")
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (default from CRON_EXPR)")
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (default from HTTP_ADDR)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately after starting")
	return cmd
}

func newScheduler(cfg *config.Config, stack *service.Stack, engine *cron.Cron) *service.Scheduler {
	return service.NewScheduler(service.SchedulerConfig{
		CronExpr:     cfg.Schedule.CronExpr,
		Dirs:         cfg.Schedule.WatchDirs,
		Recursive:    cfg.Processing.Recursive,
		OutputSuffix: cfg.Output.Suffix,
	}, stack.Driver, engine)
}

// runWithComponents registers the schedule, starts the cron engine and the
// status server, and blocks until ctx ends or the server fails.
func runWithComponents(ctx context.Context, addr string, sched scheduler, engine cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return apperr.Wrap(err, apperr.KindConfig, "invalid schedule")
	}

	engine.Start()
	defer engine.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
