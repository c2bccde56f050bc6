package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Wjlljw/pdf-translator/pkg/file"
	"github.com/Wjlljw/pdf-translator/pkg/icron"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

// Runner runs one batch.
type Runner interface {
	Run(ctx context.Context, paths []string) (*RunReport, error)
}

type SchedulerConfig struct {
	CronExpr  string
	Dirs      []string
	Recursive bool
	// OutputSuffix marks translated files that must not be picked up again.
	OutputSuffix string
}

// Scheduler scans the watched directories on a cron schedule and runs the
// batch. Overlapping triggers share the run already in flight.
type Scheduler struct {
	cfg    SchedulerConfig
	runner Runner
	cron   *cron.Cron

	group singleflight.Group

	mu   sync.Mutex
	last *RunReport
}

func NewScheduler(cfg SchedulerConfig, runner Runner, c *cron.Cron) *Scheduler {
	return &Scheduler{cfg: cfg, runner: runner, cron: c}
}

// Schedule registers the periodic run. The caller starts and stops the cron.
func (s *Scheduler) Schedule(ctx context.Context) error {
	log.Info("scheduling runs with %q over %d directories", s.cfg.CronExpr, len(s.cfg.Dirs))
	_, err := s.cron.AddFunc(s.cfg.CronExpr, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error("scheduled run failed: %v", err)
		}
	})
	return err
}

// RunOnce collects the PDFs in the watched directories and runs them. A call
// made while a run is in progress waits for it and returns its report.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunReport, error) {
	v, err, shared := s.group.Do("run", func() (any, error) {
		paths := s.Collect()
		if len(paths) == 0 {
			log.Info("no documents to translate")
		}
		report, err := s.runner.Run(ctx, paths)
		if report != nil {
			s.mu.Lock()
			s.last = report
			s.mu.Unlock()
		}
		return report, err
	})
	if shared {
		log.Debug("joined run already in progress")
	}
	report, _ := v.(*RunReport)
	return report, err
}

// Collect lists candidate PDFs. Unreadable directories are logged and skipped.
func (s *Scheduler) Collect() []string {
	seen := make(map[string]bool)
	var ret []string
	for _, dir := range s.cfg.Dirs {
		paths, err := file.FindPDFs(dir, s.cfg.Recursive, s.cfg.OutputSuffix)
		if err != nil {
			log.Error("failed to scan %s: %v", dir, err)
			continue
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				ret = append(ret, p)
			}
		}
	}
	return ret
}

func (s *Scheduler) Last() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Trigger reports the previous and next firing of the schedule.
func (s *Scheduler) Trigger(now time.Time) (*icron.TriggerInfo, error) {
	return icron.GetTriggerInfo(s.cfg.CronExpr, now)
}
