package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownItemType is returned by ItemStore implementations when the item
// type is not in the catalog. The executor turns it into a per-user error
// string instead of aborting the effect.
var ErrUnknownItemType = errors.New("unknown item type")

// itemDistributeExecutor creates items in users' inventories, tagged with
// event provenance. Users already at capacity are excluded during target
// resolution, not mid-apply.
type itemDistributeExecutor struct {
	resolverExecutor
	params ItemDistributeParams
}

func newItemDistributeExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	var p ItemDistributeParams
	if err := decodeParams(effect.EffectParams, &p, "effect"); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	return &itemDistributeExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		params:           p,
	}, nil
}

func (e *itemDistributeExecutor) TargetUsers(ctx context.Context) ([]string, error) {
	candidates, err := e.resolverExecutor.TargetUsers(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]string, 0, len(candidates))
	for _, userID := range candidates {
		free, err := e.deps.users.InventoryCapacity(ctx, userID)
		if err != nil {
			zap.L().Warn("inventory capacity check failed, excluding user",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if free <= 0 {
			continue
		}
		eligible = append(eligible, userID)
	}
	return eligible, nil
}

func (e *itemDistributeExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	properties := map[string]any{
		"source":   "event",
		"event_id": e.eventID,
	}

	for i := 0; i < e.params.Quantity; i++ {
		if err := e.deps.items.CreateItem(ctx, userID, e.params.ItemType, properties); err != nil {
			if errors.Is(err, ErrUnknownItemType) {
				return nil, fmt.Errorf("item type '%s' not found", e.params.ItemType)
			}
			return nil, err
		}
	}

	return map[string]any{
		"item_type": e.params.ItemType,
		"quantity":  e.params.Quantity,
	}, nil
}

func (e *itemDistributeExecutor) CanRollback() bool { return false }

func (e *itemDistributeExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	return false
}
