package notify

import (
	"context"
	"encoding/json"
	"fmt"

	pkgasynq "gamecore-events/pkg/asynq"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeliverTask is the asynq task type for outbound delivery.
const DeliverTask = "notify:deliver"

type DeliverPayload struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
}

// Notifier persists every notification and enqueues delivery. Delivery is
// at-least-once; a failed enqueue leaves the stored row behind for a later
// sweep rather than failing the caller's pass.
type Notifier struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq *asynq.Client
}

type NotifierParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Asynq *asynq.Client `optional:"true"`
}

func NewNotifier(p NotifierParams) *Notifier {
	return &Notifier{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,
	}
}

// Migrate creates the notification table.
func (n *Notifier) Migrate() error {
	return n.db.AutoMigrate(&Notification{})
}

func (n *Notifier) Notify(ctx context.Context, userID, kind, title, message string, extra map[string]any) error {
	extraBytes, err := json.Marshal(extra)
	if err != nil {
		return err
	}

	notification := Notification{
		ID:      n.node.Generate().String(),
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Extra:   extraBytes,
	}
	if err := n.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return err
	}

	if n.asynq == nil {
		return nil
	}

	payload, err := json.Marshal(DeliverPayload{
		NotificationID: notification.ID,
		UserID:         userID,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(DeliverTask, payload)
	if _, err := n.asynq.Enqueue(task, asynq.Queue(pkgasynq.QueueNotify)); err != nil {
		zap.L().Warn("[Notify] delivery enqueue failed, notification stored only",
			zap.String("notification_id", notification.ID), zap.Error(err))
	}
	return nil
}

// HandleDeliverTask hands a stored notification to the delivery channel.
// The channel itself (Telegram, push, ...) lives outside this repository;
// this worker marks the hand-off.
func (n *Notifier) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	var notification Notification
	if err := n.db.WithContext(ctx).First(&notification, "id = ?", payload.NotificationID).Error; err != nil {
		return err
	}

	zap.L().Info("[Notify] delivering notification",
		zap.String("notification_id", notification.ID),
		zap.String("user_id", notification.UserID),
		zap.String("kind", notification.Kind),
	)
	return nil
}
