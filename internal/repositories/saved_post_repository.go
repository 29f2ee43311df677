package repositories

import (
	"context"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedPostRepository defines the interface for saved post operations
type SavedPostRepository interface {
	SavePost(ctx context.Context, userID, postID uint) (created bool, err error)
	UnsavePost(ctx context.Context, userID, postID uint) (deleted bool, err error)
	IsPostSaved(ctx context.Context, userID, postID uint) (bool, error)
	GetSavedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
}

// PostgresSavedPostRepository implements SavedPostRepository
type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

func (r *PostgresSavedPostRepository) SavePost(ctx context.Context, userID, postID uint) (bool, error) {
	saved := &models.SavedPost{UserID: userID, PostID: postID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(saved)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "savedPostRepo.SavePost")
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresSavedPostRepository) UnsavePost(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.SavedPost{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "savedPostRepo.UnsavePost")
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresSavedPostRepository) IsPostSaved(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

// GetSavedPostIDs reports which of postIDs the user has saved.
func (r *PostgresSavedPostRepository) GetSavedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var saved []uint
	err := r.db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &saved).Error
	if err != nil {
		return nil, errors.Wrap(err, "savedPostRepo.GetSavedPostIDs")
	}
	for _, id := range saved {
		result[id] = true
	}
	return result, nil
}
