package player

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"gamecore-events/pkg/errutil"
	"gamecore-events/services/events"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Store is the reference implementation of the engine's user, item and task
// collaborator interfaces, backed by the player tables.
type Store struct {
	db   *gorm.DB
	node *snowflake.Node
}

type StoreParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewStore(p StoreParams) *Store {
	return &Store{db: p.DB, node: p.Node}
}

// Migrate creates the player tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

func toUser(p *Player) events.User {
	return events.User{
		ID:           p.ID,
		Coins:        p.Coins,
		Level:        p.Level,
		LastActiveAt: p.LastActiveAt,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*events.User, error) {
	var p Player
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("player not found", err)
		}
		return nil, err
	}
	u := toUser(&p)
	return &u, nil
}

func (s *Store) UpdateBalance(ctx context.Context, id string, newBalance int64) error {
	res := s.db.WithContext(ctx).
		Model(&Player{}).
		Where("id = ?", id).
		Update("coins", newBalance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("player not found", nil)
	}
	return nil
}

func (s *Store) AllUsers(ctx context.Context) ([]events.User, error) {
	var players []Player
	if err := s.db.WithContext(ctx).Find(&players).Error; err != nil {
		return nil, err
	}
	return toUsers(players), nil
}

func (s *Store) UsersByLevel(ctx context.Context, levels []int) ([]events.User, error) {
	var players []Player
	if err := s.db.WithContext(ctx).Where("level IN ?", levels).Find(&players).Error; err != nil {
		return nil, err
	}
	return toUsers(players), nil
}

func (s *Store) UsersWithActiveTask(ctx context.Context) ([]events.User, error) {
	var players []Player
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&LockTask{}).
			Select("user_id").
			Where("is_active = ?", true)).
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return toUsers(players), nil
}

func (s *Store) UsersActiveSince(ctx context.Context, since time.Time) ([]events.User, error) {
	var players []Player
	if err := s.db.WithContext(ctx).Where("last_active_at >= ?", since).Find(&players).Error; err != nil {
		return nil, err
	}
	return toUsers(players), nil
}

func (s *Store) InventoryCapacity(ctx context.Context, userID string) (int, error) {
	var p Player
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errutil.NotFound("player not found", err)
		}
		return 0, err
	}

	slots := p.InventorySlots
	if slots <= 0 {
		slots = defaultInventorySlots
	}

	var used int64
	if err := s.db.WithContext(ctx).Model(&InventoryItem{}).
		Where("owner_id = ?", userID).
		Count(&used).Error; err != nil {
		return 0, err
	}

	free := slots - int(used)
	if free < 0 {
		free = 0
	}
	return free, nil
}

func (s *Store) CreateItem(ctx context.Context, ownerID, itemType string, properties map[string]any) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ItemType{}).
		Where("name = ?", itemType).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return events.ErrUnknownItemType
	}

	props, err := json.Marshal(properties)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Create(&InventoryItem{
		ID:         s.node.Generate().String(),
		OwnerID:    ownerID,
		ItemType:   itemType,
		Properties: props,
	}).Error
}

func (s *Store) CountAvailableItems(ctx context.Context, ownerID, itemType string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&InventoryItem{}).
		Where("owner_id = ? AND item_type = ?", ownerID, itemType).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) ActiveTasksFor(ctx context.Context, userID string) ([]events.TaskRef, error) {
	var tasks []LockTask
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	refs := make([]events.TaskRef, 0, len(tasks))
	for _, t := range tasks {
		refs = append(refs, events.TaskRef{ID: t.ID, UserID: t.UserID, Frozen: t.IsFrozen})
	}
	return refs, nil
}

func (s *Store) SetFrozen(ctx context.Context, taskID string, frozen bool) error {
	updates := map[string]any{"is_frozen": frozen}
	if frozen {
		updates["frozen_at"] = time.Now()
	} else {
		updates["frozen_at"] = nil
	}

	res := s.db.WithContext(ctx).
		Model(&LockTask{}).
		Where("id = ?", taskID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("task not found", nil)
	}
	return nil
}

func (s *Store) RecordTimelineEvent(ctx context.Context, taskID, kind string, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Create(&TaskTimelineEvent{
		ID:       s.node.Generate().String(),
		TaskID:   taskID,
		Kind:     kind,
		Metadata: meta,
	}).Error
}

// MultiplierSource is the read-only view the coin-award path needs of the
// engine's persistent multipliers.
type MultiplierSource interface {
	ValidCoinsMultiplier(ctx context.Context, userID string, now time.Time) (float64, error)
}

// AwardCoins credits earned coins through any currently valid multiplier,
// rounding down.
func (s *Store) AwardCoins(ctx context.Context, multipliers MultiplierSource, userID string, amount int64, now time.Time) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	factor, err := multipliers.ValidCoinsMultiplier(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	credited := int64(math.Floor(float64(amount) * factor))
	if err := s.UpdateBalance(ctx, userID, user.Coins+credited); err != nil {
		return 0, err
	}
	return credited, nil
}

func toUsers(players []Player) []events.User {
	users := make([]events.User, 0, len(players))
	for i := range players {
		users = append(users, toUser(&players[i]))
	}
	return users
}
