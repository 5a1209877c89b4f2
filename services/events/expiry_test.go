package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// runTemporaryEffect executes one occurrence of a temporary effect and
// returns its executions.
func runTemporaryEffect(t *testing.T, e *testEngine, effect EventEffect, now time.Time) []EventEffectExecution {
	t.Helper()
	ctx := context.Background()

	def := e.mustCreateDefinition(t, EventDefinition{})
	effect.DefinitionID = def.ID
	e.mustCreateEffect(t, effect)

	occurrence := EventOccurrence{
		ID:           e.svc.node.Generate().String(),
		DefinitionID: def.ID,
		ScheduledAt:  now.Add(-time.Minute),
		Status:       StatusPending,
	}
	require.NoError(t, e.svc.db.Create(&occurrence).Error)

	_, err := e.svc.ExecutePending(ctx, now)
	require.NoError(t, err)

	var executions []EventEffectExecution
	require.NoError(t, e.svc.db.Where("occurrence_id = ?", occurrence.ID).Find(&executions).Error)
	return executions
}

func TestProcessExpiredRollsBackCoins(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	e.users.add(User{ID: "u1", Coins: 100})

	executions := runTemporaryEffect(t, e, EventEffect{
		EffectType:      EffectCoinsAdd,
		TargetType:      TargetAllUsers,
		EffectParams:    datatypes.JSON(`{"amount": 50}`),
		DurationMinutes: 60,
	}, now)
	require.Len(t, executions, 1)
	require.EqualValues(t, 150, e.users.coins("u1"))

	// Nothing expires before the duration elapses.
	summary, err := e.svc.ProcessExpired(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, summary.ProcessedCount)
	require.EqualValues(t, 150, e.users.coins("u1"))

	summary, err = e.svc.ProcessExpired(ctx, now.Add(61*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, summary.ProcessedCount)
	require.Equal(t, 1, summary.RolledBackCount)
	require.EqualValues(t, 100, e.users.coins("u1"))

	var final EventEffectExecution
	require.NoError(t, e.svc.db.First(&final, "id = ?", executions[0].ID).Error)
	require.True(t, final.IsExpired)
	require.True(t, final.IsRolledBack)
	require.NotNil(t, final.RolledBackAt)
}

func TestProcessExpiredIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	e.users.add(User{ID: "u1", Coins: 100})

	runTemporaryEffect(t, e, EventEffect{
		EffectType:      EffectCoinsAdd,
		TargetType:      TargetAllUsers,
		EffectParams:    datatypes.JSON(`{"amount": 50}`),
		DurationMinutes: 60,
	}, now)

	later := now.Add(2 * time.Hour)
	summary, err := e.svc.ProcessExpired(ctx, later)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ProcessedCount)

	// A second pass finds nothing; the balance is restored exactly once.
	summary, err = e.svc.ProcessExpired(ctx, later.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, summary.ProcessedCount)
	require.EqualValues(t, 100, e.users.coins("u1"))
}

func TestProcessExpiredSkipsNonRollbackableEffects(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	e.users.add(User{ID: "u1"})

	executions := runTemporaryEffect(t, e, EventEffect{
		EffectType:      EffectItemDistribute,
		TargetType:      TargetAllUsers,
		EffectParams:    datatypes.JSON(`{"item_type": "snow_shovel", "quantity": 1}`),
		DurationMinutes: 60,
	}, now)
	require.Len(t, executions, 1)

	summary, err := e.svc.ProcessExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, summary.ProcessedCount)
	require.Equal(t, 0, summary.RolledBackCount)

	var final EventEffectExecution
	require.NoError(t, e.svc.db.First(&final, "id = ?", executions[0].ID).Error)
	require.True(t, final.IsExpired)
	require.False(t, final.IsRolledBack)

	// The distributed item stays.
	require.Len(t, e.items.itemsFor("u1"), 1)
}

func TestProcessExpiredMultiplierLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	e.users.add(User{ID: "u1", Coins: 100})

	runTemporaryEffect(t, e, EventEffect{
		EffectType:      EffectCoinsMultiplier,
		TargetType:      TargetAllUsers,
		EffectParams:    datatypes.JSON(`{"multiplier": 2.0}`),
		DurationMinutes: 60,
	}, now)

	multiplier, err := e.svc.ValidCoinsMultiplier(ctx, "u1", now.Add(30*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 2.0, multiplier)

	summary, err := e.svc.ProcessExpired(ctx, now.Add(61*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, summary.ProcessedCount)

	// Record is deactivated, either by rollback or by the sweep.
	multiplier, err = e.svc.ValidCoinsMultiplier(ctx, "u1", now.Add(61*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1.0, multiplier)

	var record UserCoinsMultiplier
	require.NoError(t, e.svc.db.First(&record, "user_id = ?", "u1").Error)
	require.False(t, record.IsActive)
}

func TestProcessExpiredDeactivatesOrphanedRecords(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	// A record with no backing execution, e.g. seeded manually.
	record := UserCoinsMultiplier{
		ID:         e.svc.node.Generate().String(),
		UserID:     "u1",
		Multiplier: 3.0,
		ExpiresAt:  now.Add(-time.Minute),
		IsActive:   true,
	}
	require.NoError(t, e.svc.db.Create(&record).Error)

	enhancement := UserGameEffect{
		ID:         e.svc.node.Generate().String(),
		UserID:     "u1",
		EffectName: "double_xp",
		Multiplier: 2.0,
		ExpiresAt:  now.Add(-time.Minute),
		IsActive:   true,
	}
	require.NoError(t, e.svc.db.Create(&enhancement).Error)

	summary, err := e.svc.ProcessExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, summary.DeactivatedRecords)

	require.NoError(t, e.svc.db.First(&record, "id = ?", record.ID).Error)
	require.False(t, record.IsActive)
}
