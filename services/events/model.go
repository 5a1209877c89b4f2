package events

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type ScheduleType string

const (
	ScheduleManual        ScheduleType = "manual"
	ScheduleIntervalHours ScheduleType = "interval_hours"
	ScheduleIntervalDays  ScheduleType = "interval_days"
)

type Category string

const (
	CategoryWeather Category = "weather"
	CategoryMagic   Category = "magic"
	CategorySystem  Category = "system"
	CategorySpecial Category = "special"
)

type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerManualRun TriggerType = "manual"
)

type OccurrenceStatus string

const (
	StatusPending   OccurrenceStatus = "pending"
	StatusExecuting OccurrenceStatus = "executing"
	StatusCompleted OccurrenceStatus = "completed"
	StatusFailed    OccurrenceStatus = "failed"
	StatusCancelled OccurrenceStatus = "cancelled"
)

// EventDefinition is a reusable event template owned by the admin surface.
// The engine reads it and creates occurrences from it, never mutates it.
type EventDefinition struct {
	ID               string       `gorm:"column:id;primaryKey"`
	Name             string       `gorm:"column:name;uniqueIndex;not null"`
	Category         Category     `gorm:"column:category;type:varchar(20);not null"`
	Title            string       `gorm:"column:title;not null"`
	Description      string       `gorm:"column:description;type:text"`
	ScheduleType     ScheduleType `gorm:"column:schedule_type;type:varchar(20);not null;default:'manual'"`
	ScheduleInterval int          `gorm:"column:schedule_interval;not null;default:0"`
	IsActive         bool         `gorm:"column:is_active;default:true"`
	CreatedBy        string       `gorm:"column:created_by"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;autoUpdateTime"`

	Effects     []EventEffect     `gorm:"foreignKey:DefinitionID"`
	Occurrences []EventOccurrence `gorm:"foreignKey:DefinitionID"`
}

// Interval returns the recurrence interval and whether the definition is
// auto-schedulable at all.
func (d *EventDefinition) Interval() (time.Duration, bool) {
	switch d.ScheduleType {
	case ScheduleIntervalHours:
		return time.Duration(d.ScheduleInterval) * time.Hour, d.ScheduleInterval > 0
	case ScheduleIntervalDays:
		return time.Duration(d.ScheduleInterval) * 24 * time.Hour, d.ScheduleInterval > 0
	default:
		return 0, false
	}
}

// EventEffect is one prioritized action belonging to a definition. Lower
// priority runs first; ties break on ID so ordering stays deterministic.
type EventEffect struct {
	ID              string         `gorm:"column:id;primaryKey"`
	DefinitionID    string         `gorm:"column:definition_id;index;not null"`
	EffectType      EffectType     `gorm:"column:effect_type;type:varchar(40);not null"`
	TargetType      TargetType     `gorm:"column:target_type;type:varchar(40);not null"`
	TargetParams    datatypes.JSON `gorm:"column:target_params"`
	EffectParams    datatypes.JSON `gorm:"column:effect_params"`
	DurationMinutes int            `gorm:"column:duration_minutes;not null;default:0"`
	Priority        int            `gorm:"column:priority;not null;default:100"`
	IsActive        bool           `gorm:"column:is_active;default:true"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// Temporary reports whether executions of this effect carry an expiry.
func (e *EventEffect) Temporary() bool {
	return e.DurationMinutes > 0
}

// EffectLogEntry is one line of an occurrence's execution log.
type EffectLogEntry struct {
	EffectType   EffectType `json:"effect_type"`
	TargetType   TargetType `json:"target_type"`
	Affected     int        `json:"affected_count"`
	TotalTargets int        `json:"total_targets"`
	Error        string     `json:"error,omitempty"`
}

// EventOccurrence is one concrete firing of a definition.
type EventOccurrence struct {
	ID            string           `gorm:"column:id;primaryKey"`
	DefinitionID  string           `gorm:"column:definition_id;index;not null"`
	ScheduledAt   time.Time        `gorm:"column:scheduled_at;index;not null"`
	TriggerType   TriggerType      `gorm:"column:trigger_type;type:varchar(20);not null;default:'scheduled'"`
	TriggeredBy   *string          `gorm:"column:triggered_by"`
	Status        OccurrenceStatus `gorm:"column:status;type:varchar(20);index;not null;default:'pending'"`
	StartedAt     *time.Time       `gorm:"column:started_at"`
	CompletedAt   *time.Time       `gorm:"column:completed_at"`
	AffectedUsers int              `gorm:"column:affected_users_count;not null;default:0"`
	ExecutionLog  datatypes.JSON   `gorm:"column:execution_log"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`

	Executions []EventEffectExecution `gorm:"foreignKey:OccurrenceID"`
}

// Log decodes the stored execution log. A missing log decodes to nil.
func (o *EventOccurrence) Log() []EffectLogEntry {
	if len(o.ExecutionLog) == 0 {
		return nil
	}
	var entries []EffectLogEntry
	if err := json.Unmarshal(o.ExecutionLog, &entries); err != nil {
		return nil
	}
	return entries
}

// EventEffectExecution records one effect applied to one user within one
// occurrence. EffectData is what changed; RollbackData is the input for the
// compensating action. Once IsExpired flips to true it stays true, and
// IsRolledBack can only become true after IsExpired.
type EventEffectExecution struct {
	ID           string         `gorm:"column:id;primaryKey"`
	OccurrenceID string         `gorm:"column:occurrence_id;index;not null"`
	EffectID     string         `gorm:"column:effect_id;index;not null"`
	UserID       string         `gorm:"column:user_id;index;not null"`
	EffectData   datatypes.JSON `gorm:"column:effect_data"`
	RollbackData datatypes.JSON `gorm:"column:rollback_data"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at;index"`
	IsExpired    bool           `gorm:"column:is_expired;index;default:false"`
	IsRolledBack bool           `gorm:"column:is_rolled_back;default:false"`
	RolledBackAt *time.Time     `gorm:"column:rolled_back_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// UserCoinsMultiplier is a long-lived coin multiplier consumed read-only by
// the coin-award path. Expiry flips IsActive to false, never deletes.
type UserCoinsMultiplier struct {
	ID            string    `gorm:"column:id;primaryKey"`
	UserID        string    `gorm:"column:user_id;index;not null"`
	Multiplier    float64   `gorm:"column:multiplier;not null;default:1"`
	ExpiresAt     time.Time `gorm:"column:expires_at;index;not null"`
	IsActive      bool      `gorm:"column:is_active;index;default:true"`
	SourceEventID string    `gorm:"column:source_event_id;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Valid reports whether the multiplier applies at the given instant.
func (m *UserCoinsMultiplier) Valid(now time.Time) bool {
	return m.IsActive && m.ExpiresAt.After(now)
}

// UserGameEffect is a long-lived gameplay modifier, same lifecycle as
// UserCoinsMultiplier.
type UserGameEffect struct {
	ID            string    `gorm:"column:id;primaryKey"`
	UserID        string    `gorm:"column:user_id;index;not null"`
	EffectName    string    `gorm:"column:effect_name;not null"`
	Multiplier    float64   `gorm:"column:multiplier;not null;default:1"`
	ExpiresAt     time.Time `gorm:"column:expires_at;index;not null"`
	IsActive      bool      `gorm:"column:is_active;index;default:true"`
	SourceEventID string    `gorm:"column:source_event_id;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Valid reports whether the effect applies at the given instant.
func (e *UserGameEffect) Valid(now time.Time) bool {
	return e.IsActive && e.ExpiresAt.After(now)
}

// Models lists every table owned by the engine, in migration order.
func Models() []any {
	return []any{
		&EventDefinition{},
		&EventEffect{},
		&EventOccurrence{},
		&EventEffectExecution{},
		&UserCoinsMultiplier{},
		&UserGameEffect{},
	}
}
