package repositories

import (
	"context"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GroupedNotifications splits a user's notifications by age.
type GroupedNotifications struct {
	Today     []models.Notification `json:"today"`
	Yesterday []models.Notification `json:"yesterday"`
	ThisWeek  []models.Notification `json:"this_week"`
	Older     []models.Notification `json:"older"`
}

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	GetByUserID(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, userID uint, now time.Time) (*GroupedNotifications, error)
	GetUnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uint) error
	MarkAllAsRead(ctx context.Context, userID uint) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(notification).Error, "notificationRepo.CreateNotification")
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *postgresNotificationRepository) GetByUserID(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "notificationRepo.GetByUserID.Count")
	}

	offset := (page - 1) * limit
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "notificationRepo.GetByUserID")
	}
	return notifications, total, nil
}

// GetGrouped buckets notifications relative to the calendar day of now.
// The older bucket is capped at 50 rows.
func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, userID uint, now time.Time) (*GroupedNotifications, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	db := r.db.WithContext(ctx)
	g := &GroupedNotifications{}

	if err := db.Where("user_id = ? AND created_at >= ?", userID, todayStart).
		Order("created_at DESC").Order("id DESC").Find(&g.Today).Error; err != nil {
		return nil, errors.Wrap(err, "notificationRepo.GetGrouped.Today")
	}

	if err := db.Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, yesterdayStart, todayStart).
		Order("created_at DESC").Order("id DESC").Find(&g.Yesterday).Error; err != nil {
		return nil, errors.Wrap(err, "notificationRepo.GetGrouped.Yesterday")
	}

	// excludes today and yesterday
	if err := db.Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, weekStart, yesterdayStart).
		Order("created_at DESC").Order("id DESC").Find(&g.ThisWeek).Error; err != nil {
		return nil, errors.Wrap(err, "notificationRepo.GetGrouped.ThisWeek")
	}

	if err := db.Where("user_id = ? AND created_at < ?", userID, weekStart).
		Order("created_at DESC").Order("id DESC").Limit(50).Find(&g.Older).Error; err != nil {
		return nil, errors.Wrap(err, "notificationRepo.GetGrouped.Older")
	}

	return g, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", notificationID).Update("is_read", true).Error
	return errors.Wrap(err, "notificationRepo.MarkAsRead")
}

// MarkAllAsRead returns the number of notifications that changed state.
func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "notificationRepo.MarkAllAsRead")
	}
	return res.RowsAffected, nil
}
