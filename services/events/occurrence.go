package events

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ExecuteSummary is the result of one executor pass.
type ExecuteSummary struct {
	ExecutedCount int `json:"executed_count"`
}

// ExecutePending claims and runs every due pending occurrence. The claim is
// a compare-and-swap on status, so concurrent workers never execute the same
// occurrence twice; a worker that loses the swap just moves on.
func (s *Service) ExecutePending(ctx context.Context, now time.Time) (*ExecuteSummary, error) {
	var due []EventOccurrence
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", StatusPending, now).
		Order("scheduled_at ASC").
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	summary := &ExecuteSummary{}
	for i := range due {
		occurrence := &due[i]

		claimed, err := s.claimOccurrence(ctx, occurrence.ID, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}

		if err := s.executeOccurrence(ctx, occurrence, now); err != nil {
			// Infrastructure failure; partial effect failures never land here.
			s.markFailed(ctx, occurrence.ID, now)
			zap.L().Error("[Events] occurrence execution failed",
				zap.String("occurrence_id", occurrence.ID), zap.Error(err))
			continue
		}
		summary.ExecutedCount++
	}

	return summary, nil
}

// claimOccurrence performs the pending -> executing transition. The
// predicate checks status is still pending, which also rejects occurrences
// cancelled by an operator between the scan and the claim.
func (s *Service) claimOccurrence(ctx context.Context, occurrenceID string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&EventOccurrence{}).
		Where("id = ? AND status = ?", occurrenceID, StatusPending).
		Updates(map[string]any{
			"status":     StatusExecuting,
			"started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type effectOutcome struct {
	entry      EffectLogEntry
	executions []EventEffectExecution
	users      []string
}

func (s *Service) executeOccurrence(ctx context.Context, occurrence *EventOccurrence, now time.Time) error {
	var def EventDefinition
	if err := s.db.WithContext(ctx).First(&def, "id = ?", occurrence.DefinitionID).Error; err != nil {
		return err
	}

	var effects []EventEffect
	err := s.db.WithContext(ctx).
		Where("definition_id = ? AND is_active = ?", occurrence.DefinitionID, true).
		Order("priority ASC, id ASC").
		Find(&effects).Error
	if err != nil {
		return err
	}

	logEntries := make([]EffectLogEntry, 0, len(effects))
	executions := make([]EventEffectExecution, 0)
	distinct := make(map[string]struct{})

	for i := range effects {
		outcome := s.applyEffect(ctx, &effects[i], occurrence, now)
		logEntries = append(logEntries, outcome.entry)
		executions = append(executions, outcome.executions...)
		for _, userID := range outcome.users {
			distinct[userID] = struct{}{}
		}
	}

	logBytes, err := json.Marshal(logEntries)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(executions) > 0 {
			if err := tx.CreateInBatches(executions, 200).Error; err != nil {
				return err
			}
		}
		return tx.Model(&EventOccurrence{}).
			Where("id = ?", occurrence.ID).
			Updates(map[string]any{
				"status":               StatusCompleted,
				"completed_at":         now,
				"affected_users_count": len(distinct),
				"execution_log":        logBytes,
			}).Error
	}); err != nil {
		return err
	}

	s.notifyAffected(ctx, &def, occurrence, distinct)

	zap.L().Info("[Events] occurrence completed",
		zap.String("definition", def.Name),
		zap.String("occurrence_id", occurrence.ID),
		zap.Int("affected_users", len(distinct)),
		zap.Int("effects", len(effects)),
	)
	return nil
}

// applyEffect runs one effect against its resolved target set. Per-user
// failures are counted, not propagated; resolution and configuration
// failures surface in the log entry's error field with zero affected users.
func (s *Service) applyEffect(ctx context.Context, effect *EventEffect, occurrence *EventOccurrence, now time.Time) effectOutcome {
	outcome := effectOutcome{
		entry: EffectLogEntry{
			EffectType: effect.EffectType,
			TargetType: effect.TargetType,
		},
	}

	executor, err := s.registry.Executor(s.deps, effect, occurrence.DefinitionID, now)
	if err != nil {
		outcome.entry.Error = err.Error()
		return outcome
	}

	targets, err := executor.TargetUsers(ctx)
	if err != nil {
		outcome.entry.Error = err.Error()
		return outcome
	}
	outcome.entry.TotalTargets = len(targets)

	var expiresAt *time.Time
	if effect.Temporary() {
		t := now.Add(time.Duration(effect.DurationMinutes) * time.Minute)
		expiresAt = &t
	}

	type applied struct {
		userID string
		data   map[string]any
	}

	var mu sync.Mutex
	var successes []applied
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.poolSize())
	for _, userID := range targets {
		g.Go(func() error {
			data, err := executor.ExecuteForUser(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				zap.L().Warn("[Events] effect failed for user",
					zap.String("effect_type", string(effect.EffectType)),
					zap.String("user_id", userID),
					zap.Error(err),
				)
				return nil
			}
			successes = append(successes, applied{userID: userID, data: data})
			return nil
		})
	}
	_ = g.Wait()

	// Worker completion order is nondeterministic; keep the stored rows
	// stable for inspection.
	sort.Slice(successes, func(i, j int) bool { return successes[i].userID < successes[j].userID })

	for _, a := range successes {
		dataBytes, err := json.Marshal(a.data)
		if err != nil {
			continue
		}
		outcome.executions = append(outcome.executions, EventEffectExecution{
			ID:           s.node.Generate().String(),
			OccurrenceID: occurrence.ID,
			EffectID:     effect.ID,
			UserID:       a.userID,
			EffectData:   dataBytes,
			RollbackData: dataBytes,
			ExpiresAt:    expiresAt,
		})
		outcome.users = append(outcome.users, a.userID)
	}

	outcome.entry.Affected = len(successes)
	if firstErr != nil {
		outcome.entry.Error = firstErr.Error()
	}
	return outcome
}

// notifyAffected fans out one notification per distinct affected user.
// Delivery is at-least-once and fire-and-forget; failures are logged only.
func (s *Service) notifyAffected(ctx context.Context, def *EventDefinition, occurrence *EventOccurrence, users map[string]struct{}) {
	if len(users) == 0 {
		return
	}

	extra := map[string]any{
		"event_id":      def.ID,
		"occurrence_id": occurrence.ID,
		"category":      string(def.Category),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.poolSize())
	for userID := range users {
		g.Go(func() error {
			if err := s.notify.Notify(gctx, userID, "event", def.Title, def.Description, extra); err != nil {
				zap.L().Warn("[Events] notification failed",
					zap.String("user_id", userID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) markFailed(ctx context.Context, occurrenceID string, now time.Time) {
	err := s.db.WithContext(ctx).
		Model(&EventOccurrence{}).
		Where("id = ?", occurrenceID).
		Updates(map[string]any{
			"status":       StatusFailed,
			"completed_at": now,
		}).Error
	if err != nil {
		zap.L().Error("[Events] failed to mark occurrence failed",
			zap.String("occurrence_id", occurrenceID), zap.Error(err))
	}
}

func (s *Service) poolSize() int {
	if s.cfg.WorkerPoolSize > 0 {
		return s.cfg.WorkerPoolSize
	}
	return 8
}
