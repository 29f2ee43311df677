package models

import (
	"time"
)

// Post is an authored piece of content. UserID never changes after creation.
type Post struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Title      string    `json:"title" gorm:"size:150;not null"`
	Body       string    `json:"body" gorm:"type:text;not null"`
	AuthorName string    `json:"author_name" gorm:"size:100;not null"`
	ImageFile  string    `json:"image_file,omitempty" gorm:"size:500"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	Author     *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time `json:"updated_at"`

	// LikeCount is filled by the feed queries.
	LikeCount int64 `json:"like_count" gorm:"->;-:migration"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Title      string `json:"title" form:"title" validate:"required,min=1,max=150"`
	Body       string `json:"body" form:"body" validate:"required,min=1"`
	AuthorName string `json:"author_name" form:"author_name" validate:"omitempty,max=100"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Title       string `json:"title" form:"title" validate:"required,min=1,max=150"`
	Body        string `json:"body" form:"body" validate:"required,min=1"`
	AuthorName  string `json:"author_name" form:"author_name" validate:"omitempty,max=100"`
	RemoveImage bool   `json:"remove_image" form:"remove_image"`
}
