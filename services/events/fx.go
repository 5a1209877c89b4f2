package events

import (
	"context"
	"time"

	"gamecore-events/pkg/config"
	"gamecore-events/pkg/jobrunner"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events.service",
	fx.Provide(NewService),
	fx.Invoke(
		Migrate,
		RegisterJobs,
		RegisterTaskHandlers,
	),
)

func Migrate(svc *Service) error {
	return svc.Migrate()
}

// RegisterJobs wires the four periodic engine passes onto the job runner.
func RegisterJobs(r *jobrunner.Runner, cfg *config.Config, svc *Service) error {
	engine := cfg.Engine

	jobs := []jobrunner.Job{
		{
			Name:       "events.schedule_pending",
			Spec:       engine.SchedulerSpec,
			MaxRetries: engine.PassMaxRetries,
			Run: func(ctx context.Context) error {
				_, err := svc.SchedulePending(ctx, time.Now())
				return err
			},
		},
		{
			Name:       "events.execute_pending",
			Spec:       engine.ExecutorSpec,
			MaxRetries: engine.PassMaxRetries,
			Run: func(ctx context.Context) error {
				_, err := svc.ExecutePending(ctx, time.Now())
				return err
			},
		},
		{
			Name:       "events.process_expired",
			Spec:       engine.ExpirySpec,
			MaxRetries: engine.PassMaxRetries,
			Run: func(ctx context.Context) error {
				_, err := svc.ProcessExpired(ctx, time.Now())
				return err
			},
		},
		{
			Name:       "events.health_check",
			Spec:       engine.HealthSpec,
			MaxRetries: 0,
			Run: func(ctx context.Context) error {
				report := svc.HealthCheck(ctx, time.Now())
				zap.L().Info("[Events] health",
					zap.String("status", report.Status),
					zap.Int("active_definitions", report.ActiveDefinitions),
					zap.Int("completed_today", report.CompletedToday),
					zap.Int("failed_today", report.FailedToday),
					zap.Int("overdue_effects", report.OverdueEffects),
					zap.Strings("warnings", report.Warnings),
				)
				return nil
			},
		},
	}

	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTaskHandlers attaches the engine's asynq handlers.
func RegisterTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TriggerManualTask, svc.HandleTriggerManualTask)
}
