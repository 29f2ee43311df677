package repositories

import (
	"context"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CounterpartCount is one row of the per-counterpart message tally.
type CounterpartCount struct {
	CounterpartID uint
	MessageCount  int64
	FirstID       uint
}

// MessageRepository defines the interface for direct message operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uint) (*models.Message, error)
	UpdateMessageBody(ctx context.Context, id uint, body string) error
	DeleteMessage(ctx context.Context, id uint) error
	// GetThread returns every message between a and b, oldest first.
	GetThread(ctx context.Context, a, b uint) ([]models.Message, error)
	// MarkThreadRead marks unread messages from sender to recipient as read.
	MarkThreadRead(ctx context.Context, recipientID, senderID uint) (int64, error)
	// GetInvolving returns every message sent or received by userID, newest first.
	GetInvolving(ctx context.Context, userID uint) ([]models.Message, error)
	GetUnreadCountsBySender(ctx context.Context, recipientID uint) (map[uint]int64, error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	// GetCounterpartCounts tallies messages per counterpart, highest count
	// first and then by earliest contact.
	GetCounterpartCounts(ctx context.Context, userID uint, limit int) ([]CounterpartCount, error)
}

type postgresMessageRepository struct {
	db *gorm.DB
}

func NewPostgresMessageRepository(db *gorm.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

func (r *postgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(msg).Error, "messageRepo.CreateMessage")
}

func (r *postgresMessageRepository) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessageBody replaces the body and sets the edited flag.
func (r *postgresMessageRepository) UpdateMessageBody(ctx context.Context, id uint, body string) error {
	err := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{"body": body, "is_edited": true}).Error
	return errors.Wrap(err, "messageRepo.UpdateMessageBody")
}

func (r *postgresMessageRepository) DeleteMessage(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "messageRepo.DeleteMessage")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresMessageRepository) GetThread(ctx context.Context, a, b uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("SharedPost").
		Preload("SharedPost.Author").
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.GetThread")
	}
	return msgs, nil
}

func (r *postgresMessageRepository) MarkThreadRead(ctx context.Context, recipientID, senderID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", senderID, recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "messageRepo.MarkThreadRead")
	}
	return res.RowsAffected, nil
}

func (r *postgresMessageRepository) GetInvolving(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.GetInvolving")
	}
	return msgs, nil
}

func (r *postgresMessageRepository) GetUnreadCountsBySender(ctx context.Context, recipientID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Unread   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.GetUnreadCountsBySender")
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Unread
	}
	return counts, nil
}

func (r *postgresMessageRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *postgresMessageRepository) GetCounterpartCounts(ctx context.Context, userID uint, limit int) ([]CounterpartCount, error) {
	var rows []CounterpartCount
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS counterpart_id, COUNT(*) AS message_count, MIN(id) AS first_id", userID).
		Where("(sender_id = ? OR recipient_id = ?) AND sender_id <> recipient_id", userID, userID).
		Group("counterpart_id").
		Order("message_count DESC").
		Order("first_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.GetCounterpartCounts")
	}
	return rows, nil
}
