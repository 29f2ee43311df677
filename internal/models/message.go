package models

import "time"

// Message is a direct message. An empty Body means the message carries only an
// image or a shared post.
type Message struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SenderID     uint      `json:"sender_id" gorm:"not null;index"`
	RecipientID  uint      `json:"recipient_id" gorm:"not null;index"`
	Body         string    `json:"body,omitempty" gorm:"size:500"`
	ImageFile    string    `json:"image_file,omitempty" gorm:"size:500"`
	IsEdited     bool      `json:"is_edited"`
	IsRead       bool      `json:"is_read" gorm:"index"`
	SharedPostID *uint     `json:"shared_post_id,omitempty" gorm:"index"`
	SharedPost   *Post     `json:"shared_post,omitempty" gorm:"foreignKey:SharedPostID;constraint:OnDelete:SET NULL"`
	Sender       *User     `json:"-" gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	Recipient    *User     `json:"-" gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

type SendMessageRequest struct {
	Body         string `json:"body" form:"body"`
	SharedPostID uint   `json:"shared_post_id" form:"shared_post_id"`
}

type EditMessageRequest struct {
	Body string `json:"body" form:"body"`
}

type SharePostRequest struct {
	Recipient string `json:"recipient" form:"recipient" validate:"required"`
	Body      string `json:"body" form:"body"`
}
