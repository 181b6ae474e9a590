package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

const (
	defaultSessionSpec = "@hourly"
	defaultOTPSpec     = "*/15 * * * *"
	defaultSweepSpec   = "*/5 * * * *"
)

// Store deletes rows that expired before the given instant.
type Store interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper releases idle in-memory state, such as rate limit buckets.
type Sweeper interface {
	Sweep() int
}

// Cleaner purges expired sessions and sign-in codes on a cron schedule.
type Cleaner struct {
	store   Store
	sweeper Sweeper
	cron    *cron.Cron
	now     func() time.Time
	logger  *slog.Logger

	sessionSchedule string
	otpSchedule     string
}

type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

func WithOTPSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.otpSchedule = spec
		}
	}
}

// WithSweeper adds a sweep job; only meaningful inside the process that owns the state.
func WithSweeper(s Sweeper) Option {
	return func(cleaner *Cleaner) {
		cleaner.sweeper = s
	}
}

func NewCleaner(store Store, logger *slog.Logger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:           store,
		now:             time.Now,
		logger:          logger.With("module", "maintenance"),
		sessionSchedule: defaultSessionSpec,
		otpSchedule:     defaultOTPSpec,
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
		if _, err := c.PurgeSessions(context.Background()); err != nil {
			c.logger.Warn("session cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule session cleanup %q: %w", c.sessionSchedule, err)
	}

	if _, err := c.cron.AddFunc(c.otpSchedule, func() {
		if _, err := c.PurgeOTPs(context.Background()); err != nil {
			c.logger.Warn("otp cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule otp cleanup %q: %w", c.otpSchedule, err)
	}

	if c.sweeper != nil {
		if _, err := c.cron.AddFunc(defaultSweepSpec, func() {
			if n := c.sweeper.Sweep(); n > 0 {
				c.logger.Debug("rate limit buckets released", "count", n)
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	c.logger.Info("maintenance scheduler started", "session_schedule", c.sessionSchedule, "otp_schedule", c.otpSchedule)
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

func (c *Cleaner) PurgeSessions(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteExpiredSessions(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		c.logger.Info("expired sessions purged", "count", n)
	}
	return n, nil
}

func (c *Cleaner) PurgeOTPs(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteExpiredOTPs(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup otp tokens: %w", err)
	}
	if n > 0 {
		c.logger.Info("expired otp tokens purged", "count", n)
	}
	return n, nil
}

// RunOnce runs every purge sequentially and reports all failures together.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error
	if _, err := c.PurgeSessions(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.PurgeOTPs(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.sweeper != nil {
		c.sweeper.Sweep()
	}
	return errs
}
