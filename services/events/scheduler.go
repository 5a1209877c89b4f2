package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScheduleSummary is the result of one scheduler pass.
type ScheduleSummary struct {
	ScheduledCount int `json:"scheduled_count"`
}

// SchedulePending creates a pending occurrence for every active
// interval-scheduled definition whose interval has elapsed since its most
// recent occurrence. Pure creation; execution happens in ExecutePending.
// Idempotent per invocation because it only acts when the interval has truly
// elapsed.
func (s *Service) SchedulePending(ctx context.Context, now time.Time) (*ScheduleSummary, error) {
	var definitions []EventDefinition
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND schedule_type IN ?", true,
			[]ScheduleType{ScheduleIntervalHours, ScheduleIntervalDays}).
		Find(&definitions).Error
	if err != nil {
		return nil, err
	}

	summary := &ScheduleSummary{}
	for _, def := range definitions {
		interval, ok := def.Interval()
		if !ok {
			continue
		}

		due, err := s.definitionDue(ctx, def.ID, interval, now)
		if err != nil {
			return nil, err
		}
		if !due {
			continue
		}

		occurrence := EventOccurrence{
			ID:           s.node.Generate().String(),
			DefinitionID: def.ID,
			ScheduledAt:  now,
			TriggerType:  TriggerScheduled,
			Status:       StatusPending,
		}
		if err := s.db.WithContext(ctx).Create(&occurrence).Error; err != nil {
			return nil, err
		}

		summary.ScheduledCount++
		zap.L().Info("[Events] scheduled occurrence",
			zap.String("definition", def.Name),
			zap.String("occurrence_id", occurrence.ID),
			zap.Duration("interval", interval),
		)
	}

	return summary, nil
}

func (s *Service) definitionDue(ctx context.Context, definitionID string, interval time.Duration, now time.Time) (bool, error) {
	var last EventOccurrence
	err := s.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("scheduled_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return now.Sub(last.ScheduledAt) >= interval, nil
}
