package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// ExpirySummary is the result of one expiry pass.
type ExpirySummary struct {
	ProcessedCount     int `json:"processed_count"`
	RolledBackCount    int `json:"rolled_back_count"`
	DeactivatedRecords int `json:"deactivated_records"`
}

// ProcessExpired expires every due effect execution, rolling back the ones
// whose executor supports it, and deactivates expired persistent records.
// The is_expired / is_active flags double as CAS guards: a racing worker
// that loses the flag update treats the record as already handled, so no
// execution is ever rolled back twice.
func (s *Service) ProcessExpired(ctx context.Context, now time.Time) (*ExpirySummary, error) {
	summary := &ExpirySummary{}

	var due []EventEffectExecution
	err := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ? AND is_expired = ?", now, false).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	for i := range due {
		execution := &due[i]

		res := s.db.WithContext(ctx).
			Model(&EventEffectExecution{}).
			Where("id = ? AND is_expired = ?", execution.ID, false).
			Update("is_expired", true)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker won the expiry; nothing left to do here.
			continue
		}
		summary.ProcessedCount++

		if s.rollbackExecution(ctx, execution, now) {
			summary.RolledBackCount++
		}
	}

	deactivated, err := s.deactivateExpiredRecords(ctx, now)
	if err != nil {
		return nil, err
	}
	summary.DeactivatedRecords = deactivated

	if summary.ProcessedCount > 0 || summary.DeactivatedRecords > 0 {
		zap.L().Info("[Events] expiry pass",
			zap.Int("processed", summary.ProcessedCount),
			zap.Int("rolled_back", summary.RolledBackCount),
			zap.Int("deactivated_records", summary.DeactivatedRecords),
		)
	}
	return summary, nil
}

// rollbackExecution attempts the compensating action for one expired
// execution. A failed or unsupported rollback leaves the execution expired
// but not rolled back; it is never retried.
func (s *Service) rollbackExecution(ctx context.Context, execution *EventEffectExecution, now time.Time) bool {
	var effect EventEffect
	if err := s.db.WithContext(ctx).First(&effect, "id = ?", execution.EffectID).Error; err != nil {
		zap.L().Warn("[Events] effect missing for expired execution",
			zap.String("execution_id", execution.ID), zap.Error(err))
		return false
	}

	executor, err := s.registry.Executor(s.deps, &effect, effect.DefinitionID, now)
	if err != nil {
		zap.L().Warn("[Events] executor unavailable for rollback",
			zap.String("execution_id", execution.ID), zap.Error(err))
		return false
	}
	if !executor.CanRollback() {
		return false
	}

	var rollbackData map[string]any
	if len(execution.RollbackData) > 0 {
		if err := json.Unmarshal(execution.RollbackData, &rollbackData); err != nil {
			zap.L().Warn("[Events] malformed rollback data",
				zap.String("execution_id", execution.ID), zap.Error(err))
			return false
		}
	}

	if !executor.RollbackForUser(ctx, execution.UserID, rollbackData) {
		return false
	}

	err = s.db.WithContext(ctx).
		Model(&EventEffectExecution{}).
		Where("id = ?", execution.ID).
		Updates(map[string]any{
			"is_rolled_back": true,
			"rolled_back_at": now,
		}).Error
	if err != nil {
		zap.L().Error("[Events] failed to record rollback",
			zap.String("execution_id", execution.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) deactivateExpiredRecords(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Model(&UserCoinsMultiplier{}).
		Where("expires_at <= ? AND is_active = ?", now, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, res.Error
	}
	deactivated := int(res.RowsAffected)

	res = s.db.WithContext(ctx).
		Model(&UserGameEffect{}).
		Where("expires_at <= ? AND is_active = ?", now, true).
		Update("is_active", false)
	if res.Error != nil {
		return deactivated, res.Error
	}
	return deactivated + int(res.RowsAffected), nil
}
