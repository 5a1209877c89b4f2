package events

import (
	"context"
	"testing"
	"time"

	"gamecore-events/pkg/errutil"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCreateDefinitionValidatesSchedule(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.svc.CreateDefinition(ctx, &EventDefinition{
		Name:         "no-interval",
		Category:     CategoryWeather,
		Title:        "x",
		ScheduleType: ScheduleIntervalHours,
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	err = e.svc.CreateDefinition(ctx, &EventDefinition{
		Name:         "bad-type",
		Category:     CategoryWeather,
		Title:        "x",
		ScheduleType: ScheduleType("hourly"),
	})
	require.Error(t, err)

	err = e.svc.CreateDefinition(ctx, &EventDefinition{
		Category:     CategoryWeather,
		Title:        "x",
		ScheduleType: ScheduleManual,
	})
	require.Error(t, err) // missing name
}

func TestCreateEffectValidatesParams(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	def := e.mustCreateDefinition(t, EventDefinition{Name: "validated"})

	err := e.svc.CreateEffect(ctx, &EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": -5}`),
	})
	require.Error(t, err)

	err = e.svc.CreateEffect(ctx, &EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectStoreDiscount,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"rate": 1.5}`),
	})
	require.Error(t, err)

	err = e.svc.CreateEffect(ctx, &EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetRandomPercentage,
		EffectParams: datatypes.JSON(`{"amount": 5}`),
		TargetParams: datatypes.JSON(`{"percentage": 150}`),
	})
	require.Error(t, err)

	err = e.svc.CreateEffect(ctx, &EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetRandomPercentage,
		EffectParams: datatypes.JSON(`{"amount": 5}`),
		TargetParams: datatypes.JSON(`{"percentage": 25}`),
	})
	require.NoError(t, err)
}

func TestSetDefinitionActiveNotFound(t *testing.T) {
	e := newTestEngine(t)

	err := e.svc.SetDefinitionActive(context.Background(), "missing", true)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDuplicateDefinitionCopiesEffectsDisabled(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	def := e.mustCreateDefinition(t, EventDefinition{
		Name:             "original",
		ScheduleType:     ScheduleIntervalHours,
		ScheduleInterval: 6,
	})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": 10}`),
		Priority:     1,
	})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectTaskFreeze,
		TargetType:   TargetActiveTaskUsers,
		Priority:     2,
	})

	dup, err := e.svc.DuplicateDefinition(ctx, def.ID, "copy-of-original")
	require.NoError(t, err)
	require.NotEqual(t, def.ID, dup.ID)
	require.Equal(t, "copy-of-original", dup.Name)
	require.Equal(t, def.ScheduleType, dup.ScheduleType)
	require.Equal(t, def.ScheduleInterval, dup.ScheduleInterval)
	require.False(t, dup.IsActive)

	var effects []EventEffect
	require.NoError(t, e.svc.db.Where("definition_id = ?", dup.ID).
		Order("priority ASC").Find(&effects).Error)
	require.Len(t, effects, 2)
	require.Equal(t, EffectCoinsAdd, effects[0].EffectType)
	require.Equal(t, EffectTaskFreeze, effects[1].EffectType)
}

func TestDuplicateDefinitionNotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.svc.DuplicateDefinition(context.Background(), "missing", "copy")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeleteDefinitionCascades(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	seedUsers(e, 1)

	def := e.mustCreateDefinition(t, EventDefinition{Name: "doomed"})
	e.mustCreateEffect(t, EventEffect{
		DefinitionID: def.ID,
		EffectType:   EffectCoinsAdd,
		TargetType:   TargetAllUsers,
		EffectParams: datatypes.JSON(`{"amount": 10}`),
	})

	result, err := e.svc.TriggerManual(ctx, def.ID, "")
	require.NoError(t, err)
	require.Equal(t, "completed", result.Status)

	require.NoError(t, e.svc.DeleteDefinition(ctx, def.ID))

	var defs, effects, occurrences, executions int64
	require.NoError(t, e.svc.db.Model(&EventDefinition{}).Where("id = ?", def.ID).Count(&defs).Error)
	require.NoError(t, e.svc.db.Model(&EventEffect{}).Where("definition_id = ?", def.ID).Count(&effects).Error)
	require.NoError(t, e.svc.db.Model(&EventOccurrence{}).Where("definition_id = ?", def.ID).Count(&occurrences).Error)
	require.NoError(t, e.svc.db.Model(&EventEffectExecution{}).Where("occurrence_id = ?", result.OccurrenceID).Count(&executions).Error)
	require.Zero(t, defs)
	require.Zero(t, effects)
	require.Zero(t, occurrences)
	require.Zero(t, executions)
}

func TestDeleteDefinitionNotFound(t *testing.T) {
	e := newTestEngine(t)

	err := e.svc.DeleteDefinition(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestCancelOccurrenceOnlyPending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	def := e.mustCreateDefinition(t, EventDefinition{Name: "cancellable"})
	occurrence := EventOccurrence{
		ID:           e.svc.node.Generate().String(),
		DefinitionID: def.ID,
		ScheduledAt:  time.Now(),
		Status:       StatusPending,
	}
	require.NoError(t, e.svc.db.Create(&occurrence).Error)

	require.NoError(t, e.svc.CancelOccurrence(ctx, occurrence.ID))

	// Already cancelled; a second cancel conflicts.
	err := e.svc.CancelOccurrence(ctx, occurrence.ID)
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestValidCoinsMultiplierIsProduct(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	for _, m := range []float64{2.0, 1.5} {
		record := UserCoinsMultiplier{
			ID:         e.svc.node.Generate().String(),
			UserID:     "u1",
			Multiplier: m,
			ExpiresAt:  now.Add(time.Hour),
			IsActive:   true,
		}
		require.NoError(t, e.svc.db.Create(&record).Error)
	}
	// Expired record, never counted.
	stale := UserCoinsMultiplier{
		ID:         e.svc.node.Generate().String(),
		UserID:     "u1",
		Multiplier: 10.0,
		ExpiresAt:  now.Add(-time.Hour),
		IsActive:   true,
	}
	require.NoError(t, e.svc.db.Create(&stale).Error)

	multiplier, err := e.svc.ValidCoinsMultiplier(ctx, "u1", now)
	require.NoError(t, err)
	require.EqualValues(t, 3.0, multiplier)

	multiplier, err = e.svc.ValidCoinsMultiplier(ctx, "nobody", now)
	require.NoError(t, err)
	require.EqualValues(t, 1.0, multiplier)
}
