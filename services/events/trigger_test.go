package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTriggerManualHappyPath(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	seedUsers(e, 3)

	def := e.mustCreateDefinition(t, EventDefinition{Name: "flash-bonus", Title: "Flash Bonus"})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": 10}`),
	})

	result, err := e.svc.TriggerManual(ctx, def.ID, "a")
	require.NoError(t, err)
	require.Equal(t, "completed", result.Status)
	require.Equal(t, "flash-bonus", result.EventName)
	require.NotEmpty(t, result.OccurrenceID)
	require.Equal(t, 3, result.AffectedUsers)
	require.Len(t, result.ExecutionLog, 1)
	require.Equal(t, 3, result.ExecutionLog[0].Affected)

	var occurrence EventOccurrence
	require.NoError(t, e.svc.db.First(&occurrence, "id = ?", result.OccurrenceID).Error)
	require.Equal(t, TriggerManualRun, occurrence.TriggerType)
	require.NotNil(t, occurrence.TriggeredBy)
	require.Equal(t, "a", *occurrence.TriggeredBy)
}

func TestTriggerManualDefinitionNotFound(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.svc.TriggerManual(context.Background(), "missing", "")
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Equal(t, "Event definition not found", result.Message)
}

func TestTriggerManualInactiveDefinition(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	def := e.mustCreateDefinition(t, EventDefinition{Name: "dormant"})
	require.NoError(t, e.svc.SetDefinitionActive(ctx, def.ID, false))

	result, err := e.svc.TriggerManual(ctx, def.ID, "")
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Contains(t, result.Message, "not active")

	// No occurrence is created for a rejected trigger.
	var count int64
	require.NoError(t, e.svc.db.Model(&EventOccurrence{}).
		Where("definition_id = ?", def.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestTriggerManualUnresolvableUserIsAnonymous(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	seedUsers(e, 1)

	def := e.mustCreateDefinition(t, EventDefinition{Name: "anon-trigger"})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": 5}`),
	})

	result, err := e.svc.TriggerManual(ctx, def.ID, "ghost-admin")
	require.NoError(t, err)
	require.Equal(t, "completed", result.Status)

	var occurrence EventOccurrence
	require.NoError(t, e.svc.db.First(&occurrence, "id = ?", result.OccurrenceID).Error)
	require.Nil(t, occurrence.TriggeredBy)
}

func TestTriggerManualIgnoresSchedule(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	seedUsers(e, 1)

	// Manual-only definitions are still manually triggerable.
	def := e.mustCreateDefinition(t, EventDefinition{
		Name:         "manual-fire",
		ScheduleType: ScheduleManual,
	})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": 1}`),
	})

	first, err := e.svc.TriggerManual(ctx, def.ID, "")
	require.NoError(t, err)
	require.Equal(t, "completed", first.Status)

	// Triggering twice in a row creates two independent occurrences.
	second, err := e.svc.TriggerManual(ctx, def.ID, "")
	require.NoError(t, err)
	require.Equal(t, "completed", second.Status)
	require.NotEqual(t, first.OccurrenceID, second.OccurrenceID)
}
