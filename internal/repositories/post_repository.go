package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// FeedQuery selects and orders the posts for the feed views.
type FeedQuery struct {
	// ViewerID restricts the candidate set to the viewer's own posts plus
	// posts by identities the viewer follows. Zero means no restriction.
	ViewerID uint
	// AuthorID restricts the candidate set to one owner. Zero means no restriction.
	AuthorID uint
	// Popular orders by like count before recency.
	Popular bool
	Limit   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error)
	GetSavedPosts(ctx context.Context, userID uint) ([]models.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	// DeletePost removes the post with its likes, comments and saved rows and
	// detaches it from messages that shared it.
	DeletePost(ctx context.Context, id uint) error
	CountPostsByUser(ctx context.Context, userID uint) (int64, error)
}

// PostgresPostRepository implements PostRepository with gorm
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(post).Error, "postRepo.CreatePost")
}

// GetPostByID retrieves a post with its author and like count
func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.withLikeCount(ctx).
		Preload("Author").
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListFeed runs the feed query: one LEFT JOIN on likes, grouped per post so
// that each post appears once with its like count.
func (r *PostgresPostRepository) ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	tx := r.withLikeCount(ctx).Preload("Author")

	if q.ViewerID != 0 {
		followed := r.db.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", q.ViewerID)
		tx = tx.Where("posts.user_id = ? OR posts.user_id IN (?)", q.ViewerID, followed)
	}
	if q.AuthorID != 0 {
		tx = tx.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.Popular {
		tx = tx.Order("like_count DESC")
	}
	tx = tx.Order("posts.created_at DESC").Order("posts.id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "postRepo.ListFeed")
	}
	return posts, nil
}

// GetSavedPosts returns the user's bookmarked posts, most recently saved first.
func (r *PostgresPostRepository) GetSavedPosts(ctx context.Context, userID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.withLikeCount(ctx).
		Preload("Author").
		Joins("JOIN saved_posts ON saved_posts.post_id = posts.id AND saved_posts.user_id = ?", userID).
		Group("saved_posts.id").
		Order("saved_posts.created_at DESC").
		Order("saved_posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "postRepo.GetSavedPosts")
	}
	return posts, nil
}

// SearchPosts matches title or body case-insensitively.
func (r *PostgresPostRepository) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var posts []models.Post
	err := r.withLikeCount(ctx).
		Preload("Author").
		Where("LOWER(posts.title) LIKE ? OR LOWER(posts.body) LIKE ?", pattern, pattern).
		Order("posts.created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "postRepo.SearchPosts")
	}
	return posts, nil
}

// UpdatePost writes the editable columns. The owner is never updated.
func (r *PostgresPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).
		Select("title", "body", "author_name", "image_file", "updated_at").
		Updates(map[string]interface{}{
			"title":       post.Title,
			"body":        post.Body,
			"author_name": post.AuthorName,
			"image_file":  post.ImageFile,
			"updated_at":  nowUTC(),
		}).Error
	return errors.Wrap(err, "postRepo.UpdatePost")
}

func (r *PostgresPostRepository) DeletePost(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return errors.Wrap(err, "postRepo.DeletePost.Likes")
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return errors.Wrap(err, "postRepo.DeletePost.Comments")
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.SavedPost{}).Error; err != nil {
			return errors.Wrap(err, "postRepo.DeletePost.SavedPosts")
		}
		if err := tx.Model(&models.Message{}).Where("shared_post_id = ?", id).Update("shared_post_id", nil).Error; err != nil {
			return errors.Wrap(err, "postRepo.DeletePost.Messages")
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "postRepo.DeletePost")
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *PostgresPostRepository) CountPostsByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *PostgresPostRepository) withLikeCount(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*, COUNT(likes.id) AS like_count").
		Joins("LEFT JOIN likes ON likes.post_id = posts.id").
		Group("posts.id")
}
