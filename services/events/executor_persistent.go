package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Persistent effects without an explicit duration still need an expiry;
// a day is the stock lifetime.
const defaultPersistentDuration = 24 * time.Hour

func persistentExpiry(effect *EventEffect, now time.Time) time.Time {
	if effect.Temporary() {
		return now.Add(time.Duration(effect.DurationMinutes) * time.Minute)
	}
	return now.Add(defaultPersistentDuration)
}

// coinsMultiplierExecutor creates a UserCoinsMultiplier record the coin-award
// path consumes read-only. Rollback deactivates that specific record.
type coinsMultiplierExecutor struct {
	resolverExecutor
	multiplier float64
}

func newCoinsMultiplierExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	var p MultiplierParams
	if err := decodeParams(effect.EffectParams, &p, "effect"); err != nil {
		return nil, err
	}
	return &coinsMultiplierExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		multiplier:       p.Multiplier,
	}, nil
}

func (e *coinsMultiplierExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	expiresAt := persistentExpiry(e.effect, e.now)

	record := UserCoinsMultiplier{
		ID:            e.deps.node.Generate().String(),
		UserID:        userID,
		Multiplier:    e.multiplier,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		SourceEventID: e.eventID,
	}
	if err := e.deps.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	return map[string]any{
		"record_id":  record.ID,
		"multiplier": e.multiplier,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (e *coinsMultiplierExecutor) CanRollback() bool { return true }

func (e *coinsMultiplierExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	recordID, ok := dataString(rollbackData, "record_id")
	if !ok {
		return false
	}

	err := e.deps.db.WithContext(ctx).
		Model(&UserCoinsMultiplier{}).
		Where("id = ?", recordID).
		Update("is_active", false).Error
	if err != nil {
		zap.L().Error("coins multiplier rollback failed",
			zap.String("record_id", recordID), zap.Error(err))
		return false
	}
	return true
}

// gameEnhancementExecutor is the UserGameEffect twin of the coins
// multiplier.
type gameEnhancementExecutor struct {
	resolverExecutor
	params EnhancementParams
}

func newGameEnhancementExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	var p EnhancementParams
	if err := decodeParams(effect.EffectParams, &p, "effect"); err != nil {
		return nil, err
	}
	if p.Multiplier == 0 {
		p.Multiplier = 1
	}
	return &gameEnhancementExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		params:           p,
	}, nil
}

func (e *gameEnhancementExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	expiresAt := persistentExpiry(e.effect, e.now)

	record := UserGameEffect{
		ID:            e.deps.node.Generate().String(),
		UserID:        userID,
		EffectName:    e.params.EffectName,
		Multiplier:    e.params.Multiplier,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		SourceEventID: e.eventID,
	}
	if err := e.deps.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	return map[string]any{
		"record_id":   record.ID,
		"effect_name": e.params.EffectName,
		"multiplier":  e.params.Multiplier,
		"expires_at":  expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (e *gameEnhancementExecutor) CanRollback() bool { return true }

func (e *gameEnhancementExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	recordID, ok := dataString(rollbackData, "record_id")
	if !ok {
		return false
	}

	err := e.deps.db.WithContext(ctx).
		Model(&UserGameEffect{}).
		Where("id = ?", recordID).
		Update("is_active", false).Error
	if err != nil {
		zap.L().Error("game enhancement rollback failed",
			zap.String("record_id", recordID), zap.Error(err))
		return false
	}
	return true
}
