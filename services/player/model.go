package player

import (
	"time"

	"gorm.io/datatypes"
)

// defaultInventorySlots applies to players created before slot sizing
// existed.
const defaultInventorySlots = 20

type Player struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Username       string    `gorm:"column:username;uniqueIndex;not null"`
	Coins          int64     `gorm:"column:coins;not null;default:0"`
	Level          int       `gorm:"column:level;not null;default:1"`
	InventorySlots int       `gorm:"column:inventory_slots;not null;default:20"`
	LastActiveAt   time.Time `gorm:"column:last_active_at;index"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemType is the item catalog. Effects can only mint item types that
// exist here.
type ItemType struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type InventoryItem struct {
	ID         string         `gorm:"column:id;primaryKey"`
	OwnerID    string         `gorm:"column:owner_id;index;not null"`
	ItemType   string         `gorm:"column:item_type;index;not null"`
	Properties datatypes.JSON `gorm:"column:properties"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

type LockTask struct {
	ID        string     `gorm:"column:id;primaryKey"`
	UserID    string     `gorm:"column:user_id;index;not null"`
	Title     string     `gorm:"column:title;not null"`
	IsActive  bool       `gorm:"column:is_active;index;default:true"`
	IsFrozen  bool       `gorm:"column:is_frozen;default:false"`
	FrozenAt  *time.Time `gorm:"column:frozen_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TaskTimelineEvent is the audit trail for task state changes.
type TaskTimelineEvent struct {
	ID        string         `gorm:"column:id;primaryKey"`
	TaskID    string         `gorm:"column:task_id;index;not null"`
	Kind      string         `gorm:"column:kind;not null"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// Models lists every table owned by the player service.
func Models() []any {
	return []any{
		&Player{},
		&ItemType{},
		&InventoryItem{},
		&LockTask{},
		&TaskTimelineEvent{},
	}
}
