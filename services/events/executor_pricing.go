package events

import (
	"context"
	"time"
)

// priceChangeExecutor is advisory: it records the discount or increase rate
// and the affected item types, and the pricing path applies any currently
// valid rate at query time. No persisted price is mutated.
type priceChangeExecutor struct {
	resolverExecutor
	params   PriceChangeParams
	increase bool
}

func newPriceChangeExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	var p PriceChangeParams
	if err := decodeParams(effect.EffectParams, &p, "effect"); err != nil {
		return nil, err
	}
	return &priceChangeExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		params:           p,
		increase:         effect.EffectType == EffectPriceIncrease,
	}, nil
}

func (e *priceChangeExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	direction := "discount"
	if e.increase {
		direction = "increase"
	}

	data := map[string]any{
		"rate":      e.params.Rate,
		"direction": direction,
	}
	if len(e.params.ItemTypes) > 0 {
		data["item_types"] = e.params.ItemTypes
	}
	if e.effect.Temporary() {
		expiresAt := e.now.Add(time.Duration(e.effect.DurationMinutes) * time.Minute)
		data["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	return data, nil
}

func (e *priceChangeExecutor) CanRollback() bool { return false }

func (e *priceChangeExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	return false
}
