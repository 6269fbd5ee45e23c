// Package sweeper runs the scheduled inactivity job of spec.md §4.3
// ("Inactivity lock") and §4.1's Account state machine, driven by
// robfig/cron the way the rest of the retrieved pack schedules
// recurring background work.
package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ideal-world/bios/internal/iam/account"
	"github.com/ideal-world/bios/internal/obs/mlog"
)

// Thresholds holds the three tenant-configurable durations spec.md §6
// names: AccountInactivityLock, AccountTemporarySleepExpire/Remove,
// AccountTemporaryExpire.
type Thresholds struct {
	InactivityLock  time.Duration
	TempSleep       time.Duration
	TempSleepRemove time.Duration
	TempExpire      time.Duration
}

// TokenRevoker is the narrow contract the sweeper uses to purge a
// dormant-then-logged-out account's live tokens.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, accountID string) error
}

// Sweeper periodically scans accounts whose last login predates the
// configured thresholds and applies state transitions (spec.md §4.6's
// "Active <-> Dormant -> Logout" machine).
type Sweeper struct {
	Repo       account.Repository
	Tokens     TokenRevoker
	Thresholds Thresholds
	Clock      func() time.Time
	cron       *cron.Cron
}

// NewSweeper builds a Sweeper with the real clock.
func NewSweeper(repo account.Repository, tokens TokenRevoker, thresholds Thresholds) *Sweeper {
	return &Sweeper{Repo: repo, Tokens: tokens, Thresholds: thresholds, Clock: time.Now}
}

// Start schedules Run to execute on spec using robfig/cron's standard
// five-field expression (spec.md §5's "background cleaner task that
// evicts expired entries every 30 minutes" generalizes to this job).
func (s *Sweeper) Start(ctx context.Context, logger mlog.Logger, spec string) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Run(ctx); err != nil {
			logger.Errorf("sweeper: run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the scheduler, waiting for any in-flight run to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

// Run scans every state the thresholds could possibly move an account
// out of, and applies NextState's decision.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.Clock()

	cutoff := now.Add(-s.Thresholds.InactivityLock)
	if s.Thresholds.TempExpire > s.Thresholds.InactivityLock {
		cutoff = now.Add(-s.Thresholds.TempExpire)
	}

	candidates, err := s.Repo.ListInactiveSince(ctx, cutoff, []account.State{account.StateActive, account.StateDormant})
	if err != nil {
		return err
	}

	for _, ext := range candidates {
		next := account.NextState(ext, now, s.Thresholds.InactivityLock, s.Thresholds.TempSleep, s.Thresholds.TempSleepRemove, s.Thresholds.TempExpire)
		if next == "" {
			continue
		}

		if err := s.Repo.Update(ctx, ext.ItemId, map[string]any{"state": next}); err != nil {
			return err
		}

		if next == account.StateLogout && s.Tokens != nil {
			if err := s.Tokens.RevokeAll(ctx, ext.ItemId); err != nil {
				return err
			}
		}
	}

	return nil
}
