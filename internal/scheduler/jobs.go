package scheduler

import (
	"errors"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/pipeline"
)

// crawl runs one cycle. Errors are logged: the next tick is the retry.
func (s *Scheduler) crawl() {
	if s.ctx.Err() != nil {
		return
	}

	report, err := s.pipeline.RunOnce(s.ctx)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		s.logger.Info("crawl skipped, a cycle is already running")
	case err != nil:
		s.logger.Error("crawl cycle failed",
			logger.Int("fetched", report.Fetched),
			logger.Error(err))
	default:
		s.logger.Debug("crawl cycle done",
			logger.Int("inserted", report.Inserted),
			logger.Time("next_crawl", s.NextCrawl()))
	}
}

// runBackup writes and rotates a backup.
func (s *Scheduler) runBackup() {
	if s.ctx.Err() != nil {
		return
	}

	path, err := s.backup.Run(s.ctx)
	if err != nil {
		s.logger.Error("backup failed", logger.Error(err))
		return
	}
	s.logger.Debug("backup done", logger.String("file", path))
}
