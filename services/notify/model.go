package notify

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID        string         `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id;index;not null"`
	Kind      string         `gorm:"column:kind;not null"`
	Title     string         `gorm:"column:title;not null"`
	Message   string         `gorm:"column:message;type:text"`
	Extra     datatypes.JSON `gorm:"column:extra"`
	IsRead    bool           `gorm:"column:is_read;default:false"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
