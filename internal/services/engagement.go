package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/metrics"
)

// EngagementService handles likes, comments and bookmarks.
type EngagementService struct {
	store   *repositories.Store
	metrics *metrics.Metrics
}

func NewEngagementService(store *repositories.Store, m *metrics.Metrics) *EngagementService {
	return &EngagementService{store: store, metrics: m}
}

// CommentView is a comment with its author's summary.
type CommentView struct {
	models.Comment
	Author models.UserCompact `json:"author"`
}

func newCommentView(c models.Comment) CommentView {
	v := CommentView{Comment: c}
	if c.Author != nil {
		v.Author = c.Author.ToCompact()
	}
	return v
}

// LikeResult is the state of a post after a like toggle.
type LikeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"like_count"`
}

// ToggleLike removes the user's like if present and adds one otherwise. The
// post owner is notified only when a like is added by someone else.
func (s *EngagementService) ToggleLike(ctx context.Context, user *models.User, postID uint) (*LikeResult, error) {
	result := &LikeResult{}
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		post, err := tx.Posts.GetPostByID(ctx, postID)
		if err != nil {
			return storeErr(err, apperrors.ErrPostNotFound)
		}

		deleted, err := tx.Likes.DeleteLike(ctx, user.ID, postID)
		if err != nil {
			return err
		}
		if !deleted {
			created, err := tx.Likes.CreateLike(ctx, user.ID, postID)
			if err != nil {
				return err
			}
			result.Liked = true
			if created && post.UserID != user.ID {
				if err := notify(ctx, tx, post.UserID, user, models.NotificationLike,
					fmt.Sprintf("%s liked your post %q", user.Username, titleExcerpt(post.Title)), postLink(post.ID)); err != nil {
					return err
				}
			}
		}

		result.Count, err = tx.Likes.GetLikesCountByPostID(ctx, postID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	state := "unliked"
	if result.Liked {
		state = "liked"
	}
	s.metrics.LikesToggled.WithLabelValues(state).Inc()
	return result, nil
}

// Comment adds a comment to a post. Blank bodies are rejected.
func (s *EngagementService) Comment(ctx context.Context, user *models.User, postID uint, body string) (*CommentView, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.ErrEmptyComment
	}

	comment := &models.Comment{Body: body, UserID: user.ID, PostID: postID}
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		post, err := tx.Posts.GetPostByID(ctx, postID)
		if err != nil {
			return storeErr(err, apperrors.ErrPostNotFound)
		}
		if err := tx.Comments.CreateComment(ctx, comment); err != nil {
			return err
		}
		if post.UserID == user.ID {
			return nil
		}
		return notify(ctx, tx, post.UserID, user, models.NotificationComment,
			fmt.Sprintf("%s commented on your post %q", user.Username, titleExcerpt(post.Title)), postLink(post.ID))
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	s.metrics.Comments.Inc()
	comment.Author = user
	view := newCommentView(*comment)
	return &view, nil
}

// Comments lists a post's comments, oldest first.
func (s *EngagementService) Comments(ctx context.Context, postID uint) ([]CommentView, error) {
	comments, err := s.store.Comments.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	views := make([]CommentView, len(comments))
	for i, c := range comments {
		views[i] = newCommentView(c)
	}
	return views, nil
}

// ToggleSave bookmarks the post or removes the bookmark. It reports the
// resulting state.
func (s *EngagementService) ToggleSave(ctx context.Context, user *models.User, postID uint) (bool, error) {
	var saved bool
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Posts.GetPostByID(ctx, postID); err != nil {
			return storeErr(err, apperrors.ErrPostNotFound)
		}
		deleted, err := tx.SavedPosts.UnsavePost(ctx, user.ID, postID)
		if err != nil || deleted {
			return err
		}
		if _, err := tx.SavedPosts.SavePost(ctx, user.ID, postID); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, storeErr(err, nil)
	}
	return saved, nil
}

func notify(ctx context.Context, tx *repositories.Store, ownerID uint, actor *models.User, kind, message, link string) error {
	actorID := actor.ID
	return tx.Notifications.CreateNotification(ctx, &models.Notification{
		UserID:  ownerID,
		ActorID: &actorID,
		Type:    kind,
		Message: message,
		Link:    link,
	})
}

// notificationTitleRunes bounds the post title quoted in notification text.
const notificationTitleRunes = 60

func titleExcerpt(title string) string {
	if utf8.RuneCountInString(title) <= notificationTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:notificationTitleRunes-3]) + "..."
}

func postLink(postID uint) string {
	return fmt.Sprintf("/post/%d", postID)
}
