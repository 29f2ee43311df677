package services

import (
	"context"
	"fmt"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/metrics"
)

// GraphService manages follow edges.
type GraphService struct {
	store   *repositories.Store
	metrics *metrics.Metrics
}

func NewGraphService(store *repositories.Store, m *metrics.Metrics) *GraphService {
	return &GraphService{store: store, metrics: m}
}

// FollowCounts are the two sides of a user's graph.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// Follow creates the edge viewer -> target and notifies target. Following an
// identity twice is a no-op and produces no second notification.
func (s *GraphService) Follow(ctx context.Context, viewer, target *models.User) error {
	if viewer.ID == target.ID {
		return apperrors.ErrCannotFollowSelf
	}

	var created bool
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		created, err = tx.Follows.CreateFollow(ctx, viewer.ID, target.ID)
		if err != nil || !created {
			return err
		}
		return notify(ctx, tx, target.ID, viewer, models.NotificationFollow,
			fmt.Sprintf("%s started following you", viewer.Username), "/user/"+viewer.Username)
	})
	if err != nil {
		return storeErr(err, nil)
	}
	if created {
		s.metrics.Follows.Inc()
	}
	return nil
}

// Unfollow removes the edge if present. Without an edge, including the
// viewer's own profile, it is a no-op.
func (s *GraphService) Unfollow(ctx context.Context, viewer, target *models.User) error {
	if viewer.ID == target.ID {
		return nil
	}
	deleted, err := s.store.Follows.DeleteFollow(ctx, viewer.ID, target.ID)
	if err != nil {
		return storeErr(err, nil)
	}
	if deleted {
		s.metrics.Unfollows.Inc()
	}
	return nil
}

func (s *GraphService) IsFollowing(ctx context.Context, a, b uint) (bool, error) {
	following, err := s.store.Follows.IsFollowing(ctx, a, b)
	return following, storeErr(err, nil)
}

// Followers lists the users following user, in the order they followed.
func (s *GraphService) Followers(ctx context.Context, user *models.User) ([]models.User, error) {
	users, err := s.store.Follows.GetFollowers(ctx, user.ID)
	return users, storeErr(err, nil)
}

// Following lists the users user follows, in the order they were followed.
func (s *GraphService) Following(ctx context.Context, user *models.User) ([]models.User, error) {
	users, err := s.store.Follows.GetFollowing(ctx, user.ID)
	return users, storeErr(err, nil)
}

func (s *GraphService) Counts(ctx context.Context, user *models.User) (FollowCounts, error) {
	var counts FollowCounts
	var err error
	if counts.Followers, err = s.store.Follows.GetFollowersCount(ctx, user.ID); err != nil {
		return counts, storeErr(err, nil)
	}
	if counts.Following, err = s.store.Follows.GetFollowingCount(ctx, user.ID); err != nil {
		return counts, storeErr(err, nil)
	}
	return counts, nil
}
