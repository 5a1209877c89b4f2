package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// coinsExecutor grants or deducts a fixed coin amount. The balance never
// goes below zero, and rollback restores the snapshotted pre-effect balance
// exactly rather than re-applying a delta.
type coinsExecutor struct {
	resolverExecutor
	amount   int64
	subtract bool
}

func newCoinsExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	var p CoinsParams
	if err := decodeParams(effect.EffectParams, &p, "effect"); err != nil {
		return nil, err
	}
	return &coinsExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		amount:           p.Amount,
		subtract:         effect.EffectType == EffectCoinsSubtract,
	}, nil
}

func (e *coinsExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	user, err := e.deps.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	old := user.Coins
	var updated int64
	if e.subtract {
		updated = old - e.amount
		if updated < 0 {
			updated = 0
		}
	} else {
		updated = old + e.amount
	}

	if err := e.deps.users.UpdateBalance(ctx, userID, updated); err != nil {
		return nil, err
	}

	changed := updated - old
	if changed < 0 {
		changed = -changed
	}

	return map[string]any{
		"old_coins":      old,
		"new_coins":      updated,
		"amount_changed": changed,
	}, nil
}

func (e *coinsExecutor) CanRollback() bool { return true }

func (e *coinsExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	old, ok := dataInt64(rollbackData, "old_coins")
	if !ok {
		zap.L().Warn("coins rollback data missing old_coins", zap.String("user_id", userID))
		return false
	}

	if err := e.deps.users.UpdateBalance(ctx, userID, old); err != nil {
		zap.L().Error("coins rollback failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}
