package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestResolveAllUsers(t *testing.T) {
	e := newTestEngine(t)
	seedUsers(e, 3)

	ids, err := e.svc.resolver.Resolve(context.Background(), TargetAllUsers, nil, time.Now())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestResolveRandomPercentageBounds(t *testing.T) {
	e := newTestEngine(t)
	seedUsers(e, 10)
	ctx := context.Background()
	now := time.Now()

	ids, err := e.svc.resolver.Resolve(ctx, TargetRandomPercentage,
		datatypes.JSON(`{"percentage": 0}`), now)
	require.NoError(t, err)
	require.Empty(t, ids)

	ids, err = e.svc.resolver.Resolve(ctx, TargetRandomPercentage,
		datatypes.JSON(`{"percentage": 100}`), now)
	require.NoError(t, err)
	require.Len(t, ids, 10)
}

func TestResolveRandomPercentageIsPerUserBernoulli(t *testing.T) {
	e := newTestEngine(t)
	seedUsers(e, 4)

	// Deterministic draw sequence: in, out, in, out.
	draws := []float64{0.1, 0.9, 0.2, 0.8}
	i := 0
	e.svc.resolver.rnd = func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}

	ids, err := e.svc.resolver.Resolve(context.Background(), TargetRandomPercentage,
		datatypes.JSON(`{"percentage": 50}`), time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, ids)
}

func TestResolveRandomPercentageRejectsOutOfRange(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.svc.resolver.Resolve(ctx, TargetRandomPercentage,
		datatypes.JSON(`{"percentage": 120}`), time.Now())
	require.Error(t, err)

	_, err = e.svc.resolver.Resolve(ctx, TargetRandomPercentage,
		datatypes.JSON(`{"percentage": -5}`), time.Now())
	require.Error(t, err)
}

func TestResolveLevelBased(t *testing.T) {
	e := newTestEngine(t)
	e.users.add(User{ID: "novice", Level: 1})
	e.users.add(User{ID: "adept", Level: 5})
	e.users.add(User{ID: "master", Level: 10})

	ids, err := e.svc.resolver.Resolve(context.Background(), TargetLevelBased,
		datatypes.JSON(`{"levels": [5, 10]}`), time.Now())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"adept", "master"}, ids)
}

func TestResolveLevelBasedRequiresLevels(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.svc.resolver.Resolve(context.Background(), TargetLevelBased,
		datatypes.JSON(`{"levels": []}`), time.Now())
	require.Error(t, err)
}

func TestResolveActiveTaskUsers(t *testing.T) {
	e := newTestEngine(t)
	seedUsers(e, 3)
	e.users.activeTask["b"] = true

	ids, err := e.svc.resolver.Resolve(context.Background(), TargetActiveTaskUsers, nil, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids)
}

func TestResolveRecentActiveUsers(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	e.users.add(User{ID: "fresh", LastActiveAt: now.Add(-time.Hour)})
	e.users.add(User{ID: "stale", LastActiveAt: now.Add(-30 * 24 * time.Hour)})

	ids, err := e.svc.resolver.Resolve(context.Background(), TargetRecentActive, nil, now)
	require.NoError(t, err)
	require.Equal(t, []string{"fresh"}, ids)
}

func TestResolveUnknownTargetType(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.svc.resolver.Resolve(context.Background(), TargetType("everyone_twice"), nil, time.Now())
	require.Error(t, err)
}

func TestResolveMalformedParams(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.svc.resolver.Resolve(context.Background(), TargetRandomPercentage,
		datatypes.JSON(`{"percentage": "half"}`), time.Now())
	require.Error(t, err)
}
