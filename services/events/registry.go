package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamecore-events/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EffectExecutor is the uniform capability set every effect kind implements,
// bound to one effect row at resolution time.
type EffectExecutor interface {
	// TargetUsers returns the user IDs this effect applies to right now.
	TargetUsers(ctx context.Context) ([]string, error)
	// ExecuteForUser applies the effect to one user and returns the
	// effect-data describing what changed. Errors are isolated per user.
	ExecuteForUser(ctx context.Context, userID string) (map[string]any, error)
	// CanRollback reports whether the effect supports a compensating action.
	CanRollback() bool
	// RollbackForUser reverses the effect using the recorded rollback data.
	// It reports success; a false return leaves the execution expired but
	// not rolled back.
	RollbackForUser(ctx context.Context, userID string, rollbackData map[string]any) bool
}

// executorDeps bundles everything an executor may need.
type executorDeps struct {
	db       *gorm.DB
	node     *snowflake.Node
	users    UserStore
	items    ItemStore
	tasks    TaskStore
	resolver *TargetResolver
}

type executorCtor func(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error)

// Registry maps an effect type to its executor constructor. An unknown type
// is a configuration error surfaced at lookup, never a silent no-op.
type Registry struct {
	ctors map[EffectType]executorCtor
}

func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[EffectType]executorCtor)}

	r.register(EffectCoinsAdd, newCoinsExecutor)
	r.register(EffectCoinsSubtract, newCoinsExecutor)
	r.register(EffectItemDistribute, newItemDistributeExecutor)
	r.register(EffectTaskFreeze, newTaskFreezeExecutor)
	r.register(EffectTaskUnfreeze, newTaskFreezeExecutor)
	r.register(EffectStoreDiscount, newPriceChangeExecutor)
	r.register(EffectPriceIncrease, newPriceChangeExecutor)
	r.register(EffectCoinsMultiplier, newCoinsMultiplierExecutor)
	r.register(EffectGameEnhancement, newGameEnhancementExecutor)

	return r
}

func (r *Registry) register(t EffectType, ctor executorCtor) {
	r.ctors[t] = ctor
}

// Executor builds the executor for one effect row. Parameter validation
// happens inside the constructor, so a malformed effect fails here rather
// than mid-apply.
func (r *Registry) Executor(deps *executorDeps, effect *EventEffect, eventID string, now time.Time) (EffectExecutor, error) {
	ctor, ok := r.ctors[effect.EffectType]
	if !ok {
		return nil, errutil.BadRequest(fmt.Sprintf("unknown effect type %q", effect.EffectType), nil)
	}
	return ctor(deps, effect, eventID, now)
}

// resolverExecutor supplies the default target resolution shared by most
// executors.
type resolverExecutor struct {
	deps    *executorDeps
	effect  *EventEffect
	eventID string
	now     time.Time
}

func (e *resolverExecutor) TargetUsers(ctx context.Context) ([]string, error) {
	return e.deps.resolver.Resolve(ctx, e.effect.TargetType, e.effect.TargetParams, e.now)
}

// dataInt64 reads an integer out of decoded rollback data, tolerating the
// float64 representation JSON round-trips produce.
func dataInt64(data map[string]any, key string) (int64, bool) {
	switch v := data[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func dataString(data map[string]any, key string) (string, bool) {
	s, ok := data[key].(string)
	return s, ok
}
