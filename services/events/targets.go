package events

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gamecore-events/pkg/errutil"

	"gorm.io/datatypes"
)

// TargetResolver selects the user population an effect applies to. Every
// strategy is a pure function over the current eligible-user universe;
// random_percentage draws an independent Bernoulli sample per user, so
// re-resolving yields a different set.
type TargetResolver struct {
	users        UserStore
	recentWindow time.Duration
	rnd          func() float64
}

func NewTargetResolver(users UserStore, recentWindow time.Duration) *TargetResolver {
	return &TargetResolver{
		users:        users,
		recentWindow: recentWindow,
		rnd:          rand.Float64,
	}
}

// Resolve returns the IDs of the currently eligible users for the given
// strategy. Malformed parameters fail fast with a typed error instead of
// silently resolving to an empty or unbounded set.
func (r *TargetResolver) Resolve(ctx context.Context, targetType TargetType, params datatypes.JSON, now time.Time) ([]string, error) {
	switch targetType {
	case TargetAllUsers:
		users, err := r.users.AllUsers(ctx)
		if err != nil {
			return nil, err
		}
		return userIDs(users), nil

	case TargetRandomPercentage:
		var p RandomPercentageParams
		if err := decodeParams(params, &p, "target"); err != nil {
			return nil, err
		}
		if p.Percentage < 0 || p.Percentage > 100 {
			return nil, errutil.ValidationFailed("percentage must be in [0, 100]", nil)
		}
		users, err := r.users.AllUsers(ctx)
		if err != nil {
			return nil, err
		}
		selected := make([]string, 0, len(users))
		for _, u := range users {
			if r.rnd()*100 < p.Percentage {
				selected = append(selected, u.ID)
			}
		}
		return selected, nil

	case TargetLevelBased:
		var p LevelBasedParams
		if err := decodeParams(params, &p, "target"); err != nil {
			return nil, err
		}
		if len(p.Levels) == 0 {
			return nil, errutil.ValidationFailed("levels must be a non-empty list", nil)
		}
		users, err := r.users.UsersByLevel(ctx, p.Levels)
		if err != nil {
			return nil, err
		}
		return userIDs(users), nil

	case TargetActiveTaskUsers:
		users, err := r.users.UsersWithActiveTask(ctx)
		if err != nil {
			return nil, err
		}
		return userIDs(users), nil

	case TargetRecentActive:
		users, err := r.users.UsersActiveSince(ctx, now.Add(-r.recentWindow))
		if err != nil {
			return nil, err
		}
		return userIDs(users), nil

	default:
		return nil, errutil.BadRequest(fmt.Sprintf("unknown target type %q", targetType), nil)
	}
}

func userIDs(users []User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
