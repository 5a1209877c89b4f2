package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgasynq "gamecore-events/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TriggerManualTask is the asynq task type for queued manual triggers.
const TriggerManualTask = "events:trigger_manual"

// TriggerManualPayload is the queued-trigger task payload.
type TriggerManualPayload struct {
	DefinitionID string `json:"definition_id"`
	TriggeredBy  string `json:"triggered_by,omitempty"`
}

// TriggerResult is the user-facing outcome of a manual trigger. It is a
// result object in both the success and the error case; a missing
// definition is not an infrastructure fault.
type TriggerResult struct {
	Status        string           `json:"status"`
	Message       string           `json:"message,omitempty"`
	EventName     string           `json:"event_name,omitempty"`
	OccurrenceID  string           `json:"occurrence_id,omitempty"`
	AffectedUsers int              `json:"affected_users"`
	ExecutionLog  []EffectLogEntry `json:"execution_log,omitempty"`
}

// TriggerManual runs a definition immediately as a fresh manual occurrence
// and returns the full execution log synchronously. An unresolvable
// triggering user downgrades to an anonymous trigger rather than failing.
func (s *Service) TriggerManual(ctx context.Context, definitionID, triggeredBy string) (*TriggerResult, error) {
	now := time.Now()

	var def EventDefinition
	if err := s.db.WithContext(ctx).First(&def, "id = ?", definitionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &TriggerResult{
				Status:  "error",
				Message: "Event definition not found",
			}, nil
		}
		return nil, err
	}

	if !def.IsActive {
		return &TriggerResult{
			Status:    "error",
			Message:   fmt.Sprintf("Event '%s' is not active", def.Name),
			EventName: def.Name,
		}, nil
	}

	var triggeredByRef *string
	if triggeredBy != "" {
		if _, err := s.users.GetUser(ctx, triggeredBy); err == nil {
			triggeredByRef = &triggeredBy
		}
	}

	occurrence := EventOccurrence{
		ID:           s.node.Generate().String(),
		DefinitionID: def.ID,
		ScheduledAt:  now,
		TriggerType:  TriggerManualRun,
		TriggeredBy:  triggeredByRef,
		Status:       StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&occurrence).Error; err != nil {
		return nil, err
	}

	claimed, err := s.claimOccurrence(ctx, occurrence.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Freshly created and already claimed elsewhere; treat as handled.
		return &TriggerResult{
			Status:       "pending",
			EventName:    def.Name,
			OccurrenceID: occurrence.ID,
		}, nil
	}

	if err := s.executeOccurrence(ctx, &occurrence, now); err != nil {
		s.markFailed(ctx, occurrence.ID, now)
		return nil, err
	}

	var final EventOccurrence
	if err := s.db.WithContext(ctx).First(&final, "id = ?", occurrence.ID).Error; err != nil {
		return nil, err
	}

	return &TriggerResult{
		Status:        "completed",
		EventName:     def.Name,
		OccurrenceID:  final.ID,
		AffectedUsers: final.AffectedUsers,
		ExecutionLog:  final.Log(),
	}, nil
}

// EnqueueManualTrigger queues a manual trigger instead of running it inline.
func (s *Service) EnqueueManualTrigger(client *asynq.Client, definitionID, triggeredBy string) error {
	payload, err := json.Marshal(TriggerManualPayload{
		DefinitionID: definitionID,
		TriggeredBy:  triggeredBy,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TriggerManualTask, payload)
	if _, err := client.Enqueue(task, asynq.Queue(pkgasynq.QueueEvents)); err != nil {
		return err
	}

	zap.L().Info("[Events] enqueued manual trigger",
		zap.String("definition_id", definitionID))
	return nil
}

// HandleTriggerManualTask is the asynq worker side of EnqueueManualTrigger.
func (s *Service) HandleTriggerManualTask(ctx context.Context, t *asynq.Task) error {
	var payload TriggerManualPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	result, err := s.TriggerManual(ctx, payload.DefinitionID, payload.TriggeredBy)
	if err != nil {
		return err
	}

	zap.L().Info("[Events] queued manual trigger finished",
		zap.String("definition_id", payload.DefinitionID),
		zap.String("status", result.Status),
		zap.Int("affected_users", result.AffectedUsers),
	)
	return nil
}
