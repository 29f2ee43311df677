package models

import (
	"time"
)

const DefaultAvatar = "default.jpg"

// Preference values.
const (
	MsgEveryone  = "everyone"
	MsgFollowers = "followers"
	MsgNone      = "none"

	ProfilePublic  = "public"
	ProfilePrivate = "private"

	SortLatest  = "latest"
	SortPopular = "popular"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:80;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:120;uniqueIndex;not null"` // always stored lowercase
	PasswordHash string    `json:"-" gorm:"size:256"`                          // empty for OAuth-only accounts
	FirebaseUID  *string   `json:"-" gorm:"size:128;uniqueIndex"`
	ImageFile    string    `json:"image_file" gorm:"size:500;not null;default:'default.jpg'"`
	IsVerified   bool      `json:"is_verified"`
	Preferences  `json:"preferences" gorm:"embedded"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// Preferences are the per-user settings editable on /settings.
type Preferences struct {
	MsgPreference     string `json:"msg_preference" gorm:"size:20;not null"`
	ProfileVisibility string `json:"profile_visibility" gorm:"size:20;not null"`
	TwoFactorEnabled  bool   `json:"two_factor_enabled"`
	EmailNotifEnabled bool   `json:"email_notif_enabled"`
	FeedSorting       string `json:"feed_sorting" gorm:"size:20;not null"`
	AccentColor       string `json:"accent_color" gorm:"size:20;not null"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		MsgPreference:     MsgEveryone,
		ProfileVisibility: ProfilePublic,
		TwoFactorEnabled:  false,
		EmailNotifEnabled: true,
		FeedSorting:       SortLatest,
		AccentColor:       "purple",
	}
}

// HasPassword is false for accounts created through an OAuth provider.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UserCompact is the author/actor summary embedded in other payloads.
type UserCompact struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	ImageFile string `json:"image_file"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, ImageFile: u.ImageFile}
}

type RegisterRequest struct {
	Username  string `json:"username" form:"username" validate:"required,min=3,max=80"`
	Email     string `json:"email" form:"email" validate:"required,email,max=120"`
	Password  string `json:"password" form:"password" validate:"required,min=6"`
	Password2 string `json:"password2" form:"password2" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email      string `json:"email" form:"email" validate:"required,email"`
	Password   string `json:"password" form:"password" validate:"required"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" form:"username" validate:"omitempty,min=3,max=80"`
	Email    string `json:"email" form:"email" validate:"omitempty,email,max=120"`
}

type UpdatePreferencesRequest struct {
	MsgPreference     string `json:"msg_preference" form:"msg_preference" validate:"required,oneof=everyone followers none"`
	ProfileVisibility string `json:"profile_visibility" form:"profile_visibility" validate:"required,oneof=public private"`
	TwoFactorEnabled  bool   `json:"two_factor_enabled" form:"two_factor_enabled"`
	EmailNotifEnabled bool   `json:"email_notif_enabled" form:"email_notif_enabled"`
	FeedSorting       string `json:"feed_sorting" form:"feed_sorting" validate:"required,oneof=latest popular"`
	AccentColor       string `json:"accent_color" form:"accent_color" validate:"required,max=20,alphanum"`
}
