package models

import "time"

const (
	NotificationFollow  = "follow"
	NotificationLike    = "like"
	NotificationComment = "comment"
)

// Notification is an event record in a user's feed. IsRead only moves false -> true.
type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"` // owner
	ActorID   *uint     `json:"actor_id,omitempty" gorm:"index"`
	Type      string    `json:"type" gorm:"size:30;index"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Link      string    `json:"link,omitempty" gorm:"size:255"`
	IsRead    bool      `json:"is_read" gorm:"default:false;index"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
