package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	timelineFreeze   = "system_freeze"
	timelineUnfreeze = "system_unfreeze"
)

// taskFreezeExecutor freezes (or unfreezes) every qualifying active task a
// user has. Users with zero qualifying tasks get a zero count, not an error.
// Freezing supports rollback by unfreezing the exact tasks it touched.
type taskFreezeExecutor struct {
	resolverExecutor
	freeze bool
}

func newTaskFreezeExecutor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	return &taskFreezeExecutor{
		resolverExecutor: resolverExecutor{deps: deps, effect: effect, eventID: eventID, now: now},
		freeze:           effect.EffectType == EffectTaskFreeze,
	}, nil
}

func (e *taskFreezeExecutor) ExecuteForUser(ctx context.Context, userID string) (map[string]any, error) {
	tasks, err := e.deps.tasks.ActiveTasksFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	touched := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if e.freeze == task.Frozen {
			continue
		}
		if err := e.deps.tasks.SetFrozen(ctx, task.ID, e.freeze); err != nil {
			return nil, err
		}
		if err := e.deps.tasks.RecordTimelineEvent(ctx, task.ID, e.timelineKind(), map[string]any{
			"event_id": e.eventID,
		}); err != nil {
			zap.L().Warn("timeline event not recorded",
				zap.String("task_id", task.ID), zap.Error(err))
		}
		touched = append(touched, task.ID)
	}

	if e.freeze {
		return map[string]any{
			"frozen_task_count": len(touched),
			"frozen_task_ids":   touched,
		}, nil
	}
	return map[string]any{
		"unfrozen_task_count": len(touched),
		"unfrozen_task_ids":   touched,
	}, nil
}

func (e *taskFreezeExecutor) timelineKind() string {
	if e.freeze {
		return timelineFreeze
	}
	return timelineUnfreeze
}

func (e *taskFreezeExecutor) CanRollback() bool { return e.freeze }

func (e *taskFreezeExecutor) RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool {
	if !e.freeze {
		return false
	}

	raw, ok := rollbackData["frozen_task_ids"].([]any)
	if !ok {
		return false
	}

	for _, v := range raw {
		taskID, ok := v.(string)
		if !ok {
			continue
		}
		if err := e.deps.tasks.SetFrozen(ctx, taskID, false); err != nil {
			zap.L().Error("task unfreeze rollback failed",
				zap.String("task_id", taskID), zap.Error(err))
			return false
		}
		if err := e.deps.tasks.RecordTimelineEvent(ctx, taskID, timelineUnfreeze, map[string]any{
			"event_id": e.eventID,
		}); err != nil {
			zap.L().Warn("timeline event not recorded",
				zap.String("task_id", taskID), zap.Error(err))
		}
	}
	return true
}
