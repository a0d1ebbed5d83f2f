// Package scheduler runs the periodic maintenance jobs: the stale-order
// sweep and the refresh-token purge.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type StaleSweeper interface {
	CancelStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type TokenPurger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Jobs holds the work the scheduler runs.
type Jobs struct {
	Orders     StaleSweeper
	Tokens     TokenPurger
	StaleAfter time.Duration
	Log        *zap.Logger

	now func() time.Time
}

// SweepStale cancels PENDING orders older than StaleAfter.
func (j *Jobs) SweepStale(ctx context.Context) {
	n, err := j.Orders.CancelStale(ctx, j.StaleAfter)
	if err != nil {
		j.Log.Error("stale order sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.Log.Info("stale orders cancelled", zap.Int("count", n))
	}
}

// PurgeTokens deletes refresh tokens that expired or were revoked more than
// a day ago.
func (j *Jobs) PurgeTokens(ctx context.Context) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	n, err := j.Tokens.PurgeStale(ctx, now().Add(-24*time.Hour))
	if err != nil {
		j.Log.Error("refresh token purge failed", zap.Error(err))
		return
	}
	j.Log.Info("refresh tokens purged", zap.Int64("count", n))
}

// Start registers the jobs on a new gocron scheduler and starts it. The
// sweep runs every sweepEvery; the purge runs daily at 03:15 UTC.
func Start(ctx context.Context, j *Jobs, sweepEvery time.Duration) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	_, err = s.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(j.SweepStale, ctx),
		gocron.WithName("stale-order-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(
				gocron.NewAtTime(3, 15, 0),
			),
		),
		gocron.NewTask(j.PurgeTokens, ctx),
		gocron.WithName("refresh-token-purge"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	s.Start()
	return s, nil
}
