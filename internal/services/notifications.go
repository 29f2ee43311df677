package services

import (
	"context"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
)

// DefaultNotificationLimit is the page size used when none is requested.
const DefaultNotificationLimit = 10

// NotificationService reads and acknowledges a user's notifications.
type NotificationService struct {
	store *repositories.Store
	now   func() time.Time
}

func NewNotificationService(store *repositories.Store) *NotificationService {
	return &NotificationService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// NotificationView is a notification with its actor's summary.
type NotificationView struct {
	models.Notification
	Actor *models.UserCompact `json:"actor,omitempty"`
}

// GroupedView buckets notifications by age.
type GroupedView struct {
	Today     []NotificationView `json:"today"`
	Yesterday []NotificationView `json:"yesterday"`
	ThisWeek  []NotificationView `json:"this_week"`
	Older     []NotificationView `json:"older"`
}

// NotificationPage is one page of notifications, newest first.
type NotificationPage struct {
	Items []NotificationView `json:"notifications"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func (s *NotificationService) List(ctx context.Context, user *models.User, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = DefaultNotificationLimit
	}
	items, total, err := s.store.Notifications.GetByUserID(ctx, user.ID, page, limit)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	views, err := s.enrich(ctx, items)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: views[0], Total: total, Page: page, Limit: limit}, nil
}

// Grouped splits the user's notifications into today, yesterday, the rest of
// the past week and older.
func (s *NotificationService) Grouped(ctx context.Context, user *models.User) (*GroupedView, error) {
	g, err := s.store.Notifications.GetGrouped(ctx, user.ID, s.now())
	if err != nil {
		return nil, storeErr(err, nil)
	}
	views, err := s.enrich(ctx, g.Today, g.Yesterday, g.ThisWeek, g.Older)
	if err != nil {
		return nil, err
	}
	return &GroupedView{Today: views[0], Yesterday: views[1], ThisWeek: views[2], Older: views[3]}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, user *models.User) (int64, error) {
	count, err := s.store.Notifications.GetUnreadCount(ctx, user.ID)
	return count, storeErr(err, nil)
}

// MarkAllRead flips every unread notification of user to read.
func (s *NotificationService) MarkAllRead(ctx context.Context, user *models.User) (int64, error) {
	changed, err := s.store.Notifications.MarkAllAsRead(ctx, user.ID)
	return changed, storeErr(err, nil)
}

// MarkRead marks one notification read. Only its owner may do so.
func (s *NotificationService) MarkRead(ctx context.Context, user *models.User, id uint) error {
	return s.store.Transaction(ctx, func(tx *repositories.Store) error {
		n, err := tx.Notifications.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, apperrors.ErrNotificationNotFound)
		}
		if n.UserID != user.ID {
			return apperrors.ErrNotNotificationOwn
		}
		if n.IsRead {
			return nil
		}
		return storeErr(tx.Notifications.MarkAsRead(ctx, id), nil)
	})
}

// enrich attaches actor summaries to each list, loading every actor once.
func (s *NotificationService) enrich(ctx context.Context, lists ...[]models.Notification) ([][]NotificationView, error) {
	seen := map[uint]bool{}
	var actorIDs []uint
	for _, list := range lists {
		for _, n := range list {
			if n.ActorID != nil && !seen[*n.ActorID] {
				seen[*n.ActorID] = true
				actorIDs = append(actorIDs, *n.ActorID)
			}
		}
	}

	users, err := s.store.Users.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	actors := make(map[uint]models.UserCompact, len(users))
	for _, u := range users {
		actors[u.ID] = u.ToCompact()
	}

	out := make([][]NotificationView, len(lists))
	for i, list := range lists {
		out[i] = make([]NotificationView, len(list))
		for j, n := range list {
			out[i][j] = NotificationView{Notification: n}
			if n.ActorID != nil {
				if actor, ok := actors[*n.ActorID]; ok {
					out[i][j].Actor = &actor
				}
			}
		}
	}
	return out, nil
}
