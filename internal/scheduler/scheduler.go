// Package scheduler runs the periodic crawl cycle and the daily backup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

const (
	// DefaultCrawlInterval is the delay between two crawl cycles
	DefaultCrawlInterval = 30 * time.Minute
	// DefaultInitialDelay is the delay before the first crawl after start
	DefaultInitialDelay = 5 * time.Second
	// DefaultBackupSpec runs the backup daily at 04:00 in the scheduler location
	DefaultBackupSpec = "0 4 * * *"
)

// CycleRunner runs one crawl cycle.
type CycleRunner interface {
	RunOnce(ctx context.Context) (domain.CrawlReport, error)
}

// BackupRunner writes one rotated backup.
type BackupRunner interface {
	Run(ctx context.Context) (string, error)
}

// Options configures a Scheduler. Backup may be nil.
type Options struct {
	Pipeline     CycleRunner
	Backup       BackupRunner
	Interval     time.Duration
	InitialDelay time.Duration
	BackupSpec   string
	Location     *time.Location
	Logger       logger.Logger
}

// Scheduler owns the cron instance. It holds no global state: every
// instance is independent and can be started and stopped once.
type Scheduler struct {
	cron         *cron.Cron
	pipeline     CycleRunner
	backup       BackupRunner
	initialDelay time.Duration
	logger       logger.Logger

	crawlEntry  cron.EntryID
	backupEntry cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. It fails on an invalid backup spec.
func New(opts Options) (*Scheduler, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("scheduler needs a pipeline")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultCrawlInterval
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.BackupSpec == "" {
		opts.BackupSpec = DefaultBackupSpec
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	log := opts.Logger.Named("scheduler")
	cl := logger.Cron(log)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		// SkipIfStillRunning keeps a slow cycle from stacking up behind itself
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		pipeline:     opts.Pipeline,
		backup:       opts.Backup,
		initialDelay: opts.InitialDelay,
		logger:       log,
		ctx:          ctx,
		cancel:       cancel,
	}

	var err error
	s.crawlEntry, err = s.cron.AddFunc("@every "+opts.Interval.String(), s.crawl)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling crawl: %w", err)
	}

	if s.backup != nil {
		s.backupEntry, err = s.cron.AddFunc(opts.BackupSpec, s.runBackup)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("scheduling backup %q: %w", opts.BackupSpec, err)
		}
	}

	return s, nil
}

// Start starts the cron loop and schedules the initial crawl. Cancelling ctx
// has the same effect on running jobs as Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("scheduler started",
		logger.Time("next_crawl", s.NextCrawl()),
		logger.Duration("initial_delay", s.initialDelay))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.initialDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
			s.crawl()
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			s.cancel()
			return
		}

		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cancel()

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// NextCrawl returns the next scheduled crawl, zero before Start.
func (s *Scheduler) NextCrawl() time.Time {
	return s.cron.Entry(s.crawlEntry).Next
}

// NextBackup returns the next scheduled backup, zero when disabled.
func (s *Scheduler) NextBackup() time.Time {
	if s.backup == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.backupEntry).Next
}
