package repositories

import (
	"context"

	"github.com/anonto42/writer/backend/internal/models"
	"gorm.io/gorm"
)

// Store bundles the repositories over one *gorm.DB so that a service can run
// several of them inside a single transaction.
type Store struct {
	db *gorm.DB

	Users         UserRepository
	Follows       FollowRepository
	Posts         PostRepository
	Likes         LikeRepository
	Comments      CommentRepository
	SavedPosts    SavedPostRepository
	Notifications NotificationRepository
	Messages      MessageRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Users:         NewPostgresUserRepository(db),
		Follows:       NewPostgresFollowRepository(db),
		Posts:         NewPostgresPostRepository(db),
		Likes:         NewPostgresLikeRepository(db),
		Comments:      NewPostgresCommentRepository(db),
		SavedPosts:    NewPostgresSavedPostRepository(db),
		Notifications: NewPostgresNotificationRepository(db),
		Messages:      NewPostgresMessageRepository(db),
	}
}

// Transaction runs fn with a Store bound to one database transaction. The
// transaction commits when fn returns nil.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// AutoMigrate creates or updates every table the application uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.SavedPost{},
		&models.Notification{},
		&models.Message{},
	)
}
