package jobrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pass is one full run of a periodic job. It either succeeds end to end or
// returns an error, in which case the runner retries the whole pass.
type Pass func(ctx context.Context) error

// Job is a named periodic pass with a cron spec and a retry bound.
type Job struct {
	Name       string
	Spec       string // cron spec, "@every 1m" style included
	MaxRetries int
	Run        Pass
}

// Runner schedules jobs on a shared cron and retries failed passes with
// bounded exponential backoff. A pass that is still failing after
// MaxRetries is logged as fatal for operator attention and dropped until
// its next scheduled run.
type Runner struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc

	// backoff knobs, overridable in tests
	backoffBase time.Duration
	backoffCap  time.Duration
}

func New() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:        cron.New(),
		ctx:         ctx,
		stop:        cancel,
		backoffBase: 60 * time.Second,
		backoffCap:  300 * time.Second,
	}
}

// Register adds a job to the cron schedule.
func (r *Runner) Register(job Job) error {
	_, err := r.cron.AddFunc(job.Spec, func() {
		r.runPass(r.ctx, job)
	})
	if err != nil {
		return err
	}

	zap.L().Info("[JobRunner] registered job",
		zap.String("job", job.Name),
		zap.String("spec", job.Spec),
	)
	return nil
}

func (r *Runner) runPass(ctx context.Context, job Job) {
	start := time.Now()

	var err error
	for attempt := 0; ; attempt++ {
		err = job.Run(ctx)
		if err == nil {
			zap.L().Info("[JobRunner] pass completed",
				zap.String("job", job.Name),
				zap.Int("attempt", attempt),
				zap.Duration("duration", time.Since(start)),
			)
			return
		}

		if attempt >= job.MaxRetries {
			break
		}

		delay := r.Backoff(attempt)
		zap.L().Warn("[JobRunner] pass failed, retrying",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	zap.L().Error("[JobRunner] pass failed permanently",
		zap.String("job", job.Name),
		zap.Int("retries", job.MaxRetries),
		zap.Error(err),
	)
}

// Backoff returns the delay before retry n: min(base * 2^n, cap).
func (r *Runner) Backoff(retries int) time.Duration {
	delay := r.backoffBase
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= r.backoffCap {
			return r.backoffCap
		}
	}
	if delay > r.backoffCap {
		return r.backoffCap
	}
	return delay
}

func (r *Runner) Start() {
	r.cron.Start()
}

func (r *Runner) Stop() {
	r.stop()
	<-r.cron.Stop().Done()
}

var Module = fx.Module("jobrunner",
	fx.Provide(New),
	fx.Invoke(Run),
)

// Run wires the runner lifecycle into the fx application.
func Run(lc fx.Lifecycle, r *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			zap.L().Info("[JobRunner] started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Stop()
			return nil
		},
	})
}
