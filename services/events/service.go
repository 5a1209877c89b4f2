package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamecore-events/pkg/config"
	"gamecore-events/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Service is the event scheduling and effect-execution engine. It owns
// occurrences, executions and persistent effect records; definitions and
// effects are written through it by the admin surface but never mutated by
// the engine's own passes.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  config.EngineConfig

	users  UserStore
	items  ItemStore
	tasks  TaskStore
	notify NotificationSink

	registry *Registry
	resolver *TargetResolver
	deps     *executorDeps
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Cfg    *config.Config
	Users  UserStore
	Items  ItemStore
	Tasks  TaskStore
	Notify NotificationSink
}

func NewService(p ServiceParams) *Service {
	return New(p.DB, p.Node, p.Cfg.Engine, p.Users, p.Items, p.Tasks, p.Notify)
}

// New constructs the engine outside the fx graph; tests use it directly.
func New(db *gorm.DB, node *snowflake.Node, cfg config.EngineConfig, users UserStore, items ItemStore, tasks TaskStore, notify NotificationSink) *Service {
	resolver := NewTargetResolver(users, cfg.RecentWindow)
	s := &Service{
		db:       db,
		node:     node,
		cfg:      cfg,
		users:    users,
		items:    items,
		tasks:    tasks,
		notify:   notify,
		registry: NewRegistry(),
		resolver: resolver,
	}
	s.deps = &executorDeps{
		db:       db,
		node:     node,
		users:    users,
		items:    items,
		tasks:    tasks,
		resolver: resolver,
	}
	return s
}

// Migrate creates the engine's tables.
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

// CreateDefinition persists a new event definition after validating its
// schedule shape. Pass-through persistence for the admin surface.
func (s *Service) CreateDefinition(ctx context.Context, def *EventDefinition) error {
	switch def.ScheduleType {
	case ScheduleManual:
	case ScheduleIntervalHours, ScheduleIntervalDays:
		if def.ScheduleInterval <= 0 {
			return errutil.ValidationFailed("schedule_interval must be > 0 for interval schedules", nil)
		}
	default:
		return errutil.BadRequest(fmt.Sprintf("unknown schedule type %q", def.ScheduleType), nil)
	}
	if def.Name == "" {
		return errutil.ValidationFailed("name is required", nil)
	}

	if def.ID == "" {
		def.ID = s.node.Generate().String()
	}
	return s.db.WithContext(ctx).Create(def).Error
}

// CreateEffect persists a new effect after validating both parameter blobs,
// so execution never has to trust them blind.
func (s *Service) CreateEffect(ctx context.Context, effect *EventEffect) error {
	if effect.DefinitionID == "" {
		return errutil.ValidationFailed("definition_id is required", nil)
	}
	if err := ValidateEffectParams(effect.EffectType, effect.EffectParams); err != nil {
		return err
	}
	if err := ValidateTargetParams(effect.TargetType, effect.TargetParams); err != nil {
		return err
	}

	if effect.ID == "" {
		effect.ID = s.node.Generate().String()
	}
	return s.db.WithContext(ctx).Create(effect).Error
}

// SetDefinitionActive toggles a definition. Inactive definitions are never
// auto-scheduled and cannot be manually triggered.
func (s *Service) SetDefinitionActive(ctx context.Context, definitionID string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&EventDefinition{}).
		Where("id = ?", definitionID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("event definition not found", nil)
	}
	return nil
}

// DuplicateDefinition copies a definition and its effects under a new name.
func (s *Service) DuplicateDefinition(ctx context.Context, definitionID, newName string) (*EventDefinition, error) {
	var def EventDefinition
	if err := s.db.WithContext(ctx).Preload("Effects").First(&def, "id = ?", definitionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("event definition not found", nil)
		}
		return nil, err
	}

	copied := EventDefinition{
		ID:               s.node.Generate().String(),
		Name:             newName,
		Category:         def.Category,
		Title:            def.Title,
		Description:      def.Description,
		ScheduleType:     def.ScheduleType,
		ScheduleInterval: def.ScheduleInterval,
		IsActive:         false, // duplicates start disabled
		CreatedBy:        def.CreatedBy,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&copied).Error; err != nil {
			return err
		}
		for _, effect := range def.Effects {
			dup := effect
			dup.ID = s.node.Generate().String()
			dup.DefinitionID = copied.ID
			dup.CreatedAt = time.Time{}
			if err := tx.Create(&dup).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &copied, nil
}

// DeleteDefinition removes a definition and everything hanging off it.
// Cascade rules are explicit application-level deletes, child tables first.
func (s *Service) DeleteDefinition(ctx context.Context, definitionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var occurrenceIDs []string
		if err := tx.Model(&EventOccurrence{}).
			Where("definition_id = ?", definitionID).
			Pluck("id", &occurrenceIDs).Error; err != nil {
			return err
		}

		if len(occurrenceIDs) > 0 {
			if err := tx.Where("occurrence_id IN ?", occurrenceIDs).
				Delete(&EventEffectExecution{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("definition_id = ?", definitionID).
			Delete(&EventOccurrence{}).Error; err != nil {
			return err
		}
		if err := tx.Where("definition_id = ?", definitionID).
			Delete(&EventEffect{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", definitionID).Delete(&EventDefinition{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.NotFound("event definition not found", nil)
		}
		return nil
	})
}

// CancelOccurrence marks a pending occurrence cancelled. Executing or
// finished occurrences are left alone; the CAS predicate keeps the executor
// honest on the other side.
func (s *Service) CancelOccurrence(ctx context.Context, occurrenceID string) error {
	res := s.db.WithContext(ctx).
		Model(&EventOccurrence{}).
		Where("id = ? AND status = ?", occurrenceID, StatusPending).
		Update("status", StatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("occurrence is not pending", nil)
	}
	return nil
}

// ValidCoinsMultiplier returns the product of every currently valid coin
// multiplier for a user, 1.0 when none apply. The coin-award path calls this
// read-only.
func (s *Service) ValidCoinsMultiplier(ctx context.Context, userID string, now time.Time) (float64, error) {
	var records []UserCoinsMultiplier
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	multiplier := 1.0
	for _, r := range records {
		multiplier *= r.Multiplier
	}
	return multiplier, nil
}

// ValidGameEffects returns a user's currently valid game enhancements.
func (s *Service) ValidGameEffects(ctx context.Context, userID string, now time.Time) ([]UserGameEffect, error) {
	var records []UserGameEffect
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
