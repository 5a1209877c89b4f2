package events

import (
	"encoding/json"
	"fmt"

	"gamecore-events/pkg/errutil"

	"gorm.io/datatypes"
)

type EffectType string

const (
	EffectCoinsAdd        EffectType = "coins_add"
	EffectCoinsSubtract   EffectType = "coins_subtract"
	EffectItemDistribute  EffectType = "item_distribute"
	EffectTaskFreeze      EffectType = "task_freeze_all"
	EffectTaskUnfreeze    EffectType = "task_unfreeze_all"
	EffectStoreDiscount   EffectType = "store_discount"
	EffectPriceIncrease   EffectType = "price_increase"
	EffectCoinsMultiplier EffectType = "temporary_coins_multiplier"
	EffectGameEnhancement EffectType = "temporary_game_enhancement"
)

type TargetType string

const (
	TargetAllUsers         TargetType = "all_users"
	TargetRandomPercentage TargetType = "random_percentage"
	TargetLevelBased       TargetType = "level_based"
	TargetActiveTaskUsers  TargetType = "active_task_users"
	TargetRecentActive     TargetType = "recent_active_users"
)

// CoinsParams configures coins_add and coins_subtract.
type CoinsParams struct {
	Amount int64 `json:"amount"`
}

// ItemDistributeParams configures item_distribute.
type ItemDistributeParams struct {
	ItemType string `json:"item_type"`
	Quantity int    `json:"quantity"`
}

// PriceChangeParams configures store_discount and price_increase. Rate is a
// fraction, e.g. 0.25 for a 25% change. An empty ItemTypes list means the
// whole catalog.
type PriceChangeParams struct {
	Rate      float64  `json:"rate"`
	ItemTypes []string `json:"item_types,omitempty"`
}

// MultiplierParams configures temporary_coins_multiplier.
type MultiplierParams struct {
	Multiplier float64 `json:"multiplier"`
}

// EnhancementParams configures temporary_game_enhancement.
type EnhancementParams struct {
	EffectName string  `json:"effect_name"`
	Multiplier float64 `json:"multiplier"`
}

// RandomPercentageParams configures the random_percentage target.
type RandomPercentageParams struct {
	Percentage float64 `json:"percentage"`
}

// LevelBasedParams configures the level_based target.
type LevelBasedParams struct {
	Levels []int `json:"levels"`
}

func decodeParams(raw datatypes.JSON, out any, what string) error {
	if len(raw) == 0 {
		raw = datatypes.JSON("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errutil.ValidationFailed(fmt.Sprintf("malformed %s parameters", what), err)
	}
	return nil
}

// ValidateEffectParams decodes and checks the kind-specific parameters for an
// effect type. Unknown extension fields are tolerated for forward
// compatibility; known fields must be well-typed and in range.
func ValidateEffectParams(effectType EffectType, raw datatypes.JSON) error {
	switch effectType {
	case EffectCoinsAdd, EffectCoinsSubtract:
		var p CoinsParams
		if err := decodeParams(raw, &p, "effect"); err != nil {
			return err
		}
		if p.Amount <= 0 {
			return errutil.ValidationFailed("amount must be > 0", nil)
		}
	case EffectItemDistribute:
		var p ItemDistributeParams
		if err := decodeParams(raw, &p, "effect"); err != nil {
			return err
		}
		if p.ItemType == "" {
			return errutil.ValidationFailed("item_type is required", nil)
		}
		if p.Quantity <= 0 {
			return errutil.ValidationFailed("quantity must be > 0", nil)
		}
	case EffectTaskFreeze, EffectTaskUnfreeze:
		// no parameters
	case EffectStoreDiscount, EffectPriceIncrease:
		var p PriceChangeParams
		if err := decodeParams(raw, &p, "effect"); err != nil {
			return err
		}
		if p.Rate <= 0 || p.Rate >= 1 {
			return errutil.ValidationFailed("rate must be in (0, 1)", nil)
		}
	case EffectCoinsMultiplier:
		var p MultiplierParams
		if err := decodeParams(raw, &p, "effect"); err != nil {
			return err
		}
		if p.Multiplier <= 0 {
			return errutil.ValidationFailed("multiplier must be > 0", nil)
		}
	case EffectGameEnhancement:
		var p EnhancementParams
		if err := decodeParams(raw, &p, "effect"); err != nil {
			return err
		}
		if p.EffectName == "" {
			return errutil.ValidationFailed("effect_name is required", nil)
		}
		if p.Multiplier <= 0 {
			return errutil.ValidationFailed("multiplier must be > 0", nil)
		}
	default:
		return errutil.BadRequest(fmt.Sprintf("unknown effect type %q", effectType), nil)
	}
	return nil
}

// ValidateTargetParams decodes and checks the kind-specific parameters for a
// target type.
func ValidateTargetParams(targetType TargetType, raw datatypes.JSON) error {
	switch targetType {
	case TargetAllUsers, TargetActiveTaskUsers, TargetRecentActive:
		// no parameters
	case TargetRandomPercentage:
		var p RandomPercentageParams
		if err := decodeParams(raw, &p, "target"); err != nil {
			return err
		}
		if p.Percentage < 0 || p.Percentage > 100 {
			return errutil.ValidationFailed("percentage must be in [0, 100]", nil)
		}
	case TargetLevelBased:
		var p LevelBasedParams
		if err := decodeParams(raw, &p, "target"); err != nil {
			return err
		}
		if len(p.Levels) == 0 {
			return errutil.ValidationFailed("levels must be a non-empty list", nil)
		}
	default:
		return errutil.BadRequest(fmt.Sprintf("unknown target type %q", targetType), nil)
	}
	return nil
}
