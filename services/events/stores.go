package events

import (
	"context"
	"time"
)

// User is the engine's view of a player account. The engine only ever reads
// it and writes back a new balance through UpdateBalance.
type User struct {
	ID           string
	Coins        int64
	Level        int
	LastActiveAt time.Time
}

// TaskRef is the engine's view of a lock task.
type TaskRef struct {
	ID     string
	UserID string
	Frozen bool
}

// UserStore is the account collaborator. Implementations live outside the
// engine; services/player ships the reference one.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateBalance(ctx context.Context, id string, newBalance int64) error
	AllUsers(ctx context.Context) ([]User, error)
	UsersByLevel(ctx context.Context, levels []int) ([]User, error)
	UsersWithActiveTask(ctx context.Context) ([]User, error)
	UsersActiveSince(ctx context.Context, since time.Time) ([]User, error)
	// InventoryCapacity returns the number of free inventory slots left.
	InventoryCapacity(ctx context.Context, userID string) (int, error)
}

// ItemStore is the item/inventory collaborator.
type ItemStore interface {
	CreateItem(ctx context.Context, ownerID, itemType string, properties map[string]any) error
	CountAvailableItems(ctx context.Context, ownerID, itemType string) (int, error)
}

// TaskStore is the lock-task collaborator.
type TaskStore interface {
	ActiveTasksFor(ctx context.Context, userID string) ([]TaskRef, error)
	SetFrozen(ctx context.Context, taskID string, frozen bool) error
	RecordTimelineEvent(ctx context.Context, taskID, kind string, metadata map[string]any) error
}

// NotificationSink delivers user-facing notifications at least once.
// Failures are logged by callers, never retried by the engine.
type NotificationSink interface {
	Notify(ctx context.Context, userID, kind, title, message string, extra map[string]any) error
}
