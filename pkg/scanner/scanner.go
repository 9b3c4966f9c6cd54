// Package scanner runs the periodic deadline job: overdue reminders for live
// submissions and release of document locks whose scheduled unlock has passed.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the scan every five minutes.
const DefaultSchedule = "*/5 * * * *"

// LeaseKey is the Redis key replicas compete for.
const LeaseKey = "signoff:scanner:lease"

// OverdueReminder is implemented by services.Submissions.
type OverdueReminder interface {
	RemindOverdue(ctx context.Context, actor string) (int, error)
}

// LockReleaser is implemented by services.Documents.
type LockReleaser interface {
	ReleaseExpired(ctx context.Context, actor string) ([]string, error)
}

// Report summarises one scan.
type Report struct {
	Skipped   bool
	Reminders int
	Released  []string
}

type Scanner struct {
	reminder OverdueReminder
	releaser LockReleaser
	lease    Lease
	actor    string
	logger   *slog.Logger
	timeout  time.Duration

	cron  *cron.Cron
	entry cron.EntryID
	mutex sync.Mutex
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLease replaces the default local lease.
func WithLease(lease Lease) Option {
	return func(s *Scanner) { s.lease = lease }
}

// WithTimeout bounds a single scan; it is also the lease TTL.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scanner) { s.timeout = timeout }
}

// New creates a scanner acting as actor, which must be an administrator for
// expired locks to be released.
func New(reminder OverdueReminder, releaser LockReleaser, actor string, logger *slog.Logger, opts ...Option) (*Scanner, error) {
	if actor == "" {
		return nil, errors.New("scanner actor is required")
	}

	s := &Scanner{
		reminder: reminder,
		releaser: releaser,
		lease:    NewLocalLease(),
		actor:    actor,
		logger:   logger.With("module", "scanner"),
		timeout:  time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Scan runs one pass if the lease can be taken. Both halves always run; their
// errors are joined.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	acquired, err := s.lease.Acquire(ctx, s.timeout)
	if err != nil {
		return Report{}, err
	}

	if !acquired {
		s.logger.DebugContext(ctx, "lease held elsewhere, skipping scan")

		return Report{Skipped: true}, nil
	}

	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release lease", "error", err)
		}
	}()

	var report Report

	reminders, remindErr := s.reminder.RemindOverdue(ctx, s.actor)
	if remindErr != nil {
		remindErr = fmt.Errorf("failed to send overdue reminders: %w", remindErr)
	}

	report.Reminders = reminders

	released, releaseErr := s.releaser.ReleaseExpired(ctx, s.actor)
	if releaseErr != nil {
		releaseErr = fmt.Errorf("failed to release expired locks: %w", releaseErr)
	}

	report.Released = released

	return report, errors.Join(remindErr, releaseErr)
}

// Start schedules Scan with a standard five-field cron expression.
func (s *Scanner) Start(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", schedule, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entry, err := s.cron.AddFunc(schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entry = entry
	s.cron.Start()
	s.logger.InfoContext(ctx, "scanner started", "schedule", schedule, "actor", s.actor)

	return nil
}

func (s *Scanner) run(ctx context.Context) {
	started := time.Now()

	report, err := s.Scan(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scan failed", "error", err)
	}

	if report.Skipped {
		return
	}

	s.logger.InfoContext(ctx, "scan finished",
		"reminders", report.Reminders,
		"released", len(report.Released),
		"duration", time.Since(started),
	)
}

// Stop removes the job and waits for a running scan to finish or ctx to end.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mutex.Lock()
	c := s.cron
	s.cron = nil
	s.mutex.Unlock()

	if c == nil {
		return nil
	}

	c.Remove(s.entry)

	select {
	case <-c.Stop().Done():
		s.logger.InfoContext(ctx, "scanner stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
