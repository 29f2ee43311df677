package models

import "time"

// SavedPost represents a bookmarked/saved post by a user
type SavedPost struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index;uniqueIndex:idx_saved_user_post"`
	PostID    uint      `json:"post_id" gorm:"not null;index;uniqueIndex:idx_saved_user_post"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Post      *Post     `json:"post,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
