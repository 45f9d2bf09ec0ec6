package sweep

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"overdub/internal/config"
	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/logging"
)

const defaultSchedule = "@hourly"

// Ledger is the credit surface the sweeper needs.
type Ledger interface {
	Release(ctx context.Context, jobID string) error
	StaleReservations(ctx context.Context, cutoff time.Time) ([]credits.Reservation, error)
}

var _ Ledger = (*credits.Ledger)(nil)

// Sweeper deletes expired jobs, their staged media, and orphaned credit
// reservations on a cron schedule.
type Sweeper struct {
	cfg    *config.Config
	store  *jobs.Store
	ledger Ledger
	logger *slog.Logger
	cron   *cron.Cron
}

// New constructs a sweeper. Call Start to begin scheduled runs.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, ledger Ledger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		ledger: ledger,
		logger: logger.With(logging.String(logging.FieldComponent, "sweeper")),
	}
}

// Start schedules periodic sweeps using the configured cron expression.
func (s *Sweeper) Start() error {
	schedule := strings.TrimSpace(s.cfg.Dubbing.SweepSchedule)
	if schedule == "" {
		schedule = defaultSchedule
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn("scheduled sweep failed", logging.Error(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper started", logging.String("schedule", schedule))
	return nil
}

// Stop halts scheduled sweeps and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	expired, err := s.store.ExpiredJobs(ctx, now)
	if err != nil {
		return err
	}
	var firstErr error
	for _, job := range expired {
		if err := s.removeJob(ctx, job); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("failed to sweep expired job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
			continue
		}
		s.logger.Info("swept expired job",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
		)
	}

	if err := s.releaseOrphanedReservations(ctx, now); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Sweeper) removeJob(ctx context.Context, job *jobs.Job) error {
	if s.ledger != nil {
		if err := s.ledger.Release(ctx, job.ID); err != nil {
			return err
		}
	}
	if _, err := s.store.Remove(ctx, job.ID); err != nil {
		return err
	}
	staging := strings.TrimSpace(s.cfg.Paths.StagingDir)
	if staging == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(staging, job.ID))
}

// releaseOrphanedReservations drops unconfirmed holds whose job no longer
// exists. A hold older than the retention window with no backing job is a
// leak from an interrupted delete.
func (s *Sweeper) releaseOrphanedReservations(ctx context.Context, now time.Time) error {
	if s.ledger == nil {
		return nil
	}
	retention := time.Duration(s.cfg.Dubbing.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	stale, err := s.ledger.StaleReservations(ctx, now.Add(-retention))
	if err != nil {
		return err
	}
	var firstErr error
	for _, res := range stale {
		job, err := s.store.GetByID(ctx, res.JobID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if job != nil {
			continue
		}
		if err := s.ledger.Release(ctx, res.JobID); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info("released orphaned reservation",
			logging.String(logging.FieldJobID, res.JobID),
			logging.Int("amount", res.Amount),
		)
	}
	return firstErr
}
