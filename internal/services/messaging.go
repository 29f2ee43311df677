package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/anonto42/writer/backend/pkg/storage"
)

const (
	maxMessageLength    = 500
	DefaultTopChatLimit = 10
)

// MessagingConfig holds the messaging policy switches.
type MessagingConfig struct {
	// AllowSharedOnly accepts a message whose only payload is a shared post.
	AllowSharedOnly bool
	TopChatLimit    int
}

// MessagingService sends, lists and edits direct messages.
type MessagingService struct {
	store   *repositories.Store
	images  storage.ImageStore
	metrics *metrics.Metrics
	cfg     MessagingConfig
}

func NewMessagingService(store *repositories.Store, images storage.ImageStore, m *metrics.Metrics, cfg MessagingConfig) *MessagingService {
	if cfg.TopChatLimit <= 0 {
		cfg.TopChatLimit = DefaultTopChatLimit
	}
	return &MessagingService{store: store, images: images, metrics: m, cfg: cfg}
}

// SendInput is a message to deliver. Body, Image and SharedPostID are each optional.
type SendInput struct {
	Sender       *models.User
	Recipient    *models.User
	Body         string
	Image        *ImageUpload
	SharedPostID *uint
}

// ThreadSummary is the latest message exchanged with one counterpart.
type ThreadSummary struct {
	Counterpart models.UserCompact `json:"user"`
	LastMessage models.Message     `json:"last_message"`
	Unread      int64              `json:"unread"`
}

// Send validates and stores one message. The recipient's msg_preference is
// enforced: "none" refuses everyone, "followers" accepts only identities
// that follow the recipient.
func (s *MessagingService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.Sender.ID == in.Recipient.ID {
		return nil, apperrors.ErrCannotMessageSelf
	}

	body := strings.TrimSpace(in.Body)
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, apperrors.InvalidField("body", "message is too long")
	}
	if !s.hasPayload(body, in.Image != nil, in.SharedPostID != nil) {
		return nil, apperrors.ErrEmptyMessage
	}

	if err := s.checkPreference(ctx, in.Sender, in.Recipient); err != nil {
		return nil, err
	}

	var sharedPost *models.Post
	if in.SharedPostID != nil {
		post, err := s.store.Posts.GetPostByID(ctx, *in.SharedPostID)
		if err != nil {
			return nil, storeErr(err, apperrors.ErrPostNotFound)
		}
		sharedPost = post
	}

	msg := &models.Message{
		SenderID:     in.Sender.ID,
		RecipientID:  in.Recipient.ID,
		Body:         body,
		SharedPostID: in.SharedPostID,
	}
	if in.Image != nil {
		url, err := s.images.Upload(ctx, "messages", in.Image.Filename, in.Image.Reader)
		if err != nil {
			return nil, imageErr("image", err)
		}
		msg.ImageFile = url
	}

	if err := s.store.Messages.CreateMessage(ctx, msg); err != nil {
		return nil, storeErr(err, nil)
	}
	s.metrics.MessagesSent.Inc()

	msg.SharedPost = sharedPost
	return msg, nil
}

// SharePost sends postID to recipient with an optional note.
func (s *MessagingService) SharePost(ctx context.Context, sender, recipient *models.User, postID uint, body string) (*models.Message, error) {
	return s.Send(ctx, SendInput{Sender: sender, Recipient: recipient, Body: body, SharedPostID: &postID})
}

// ListThreads returns one summary per counterpart, ordered by the recency of
// the latest message exchanged with them.
func (s *MessagingService) ListThreads(ctx context.Context, viewer *models.User) ([]ThreadSummary, error) {
	msgs, err := s.store.Messages.GetInvolving(ctx, viewer.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	unread, err := s.store.Messages.GetUnreadCountsBySender(ctx, viewer.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}

	seen := make(map[uint]bool)
	var order []uint
	latest := make(map[uint]models.Message)
	for _, m := range msgs {
		other := m.SenderID
		if other == viewer.ID {
			other = m.RecipientID
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		order = append(order, other)
		latest[other] = m
	}

	users, err := s.usersByID(ctx, order)
	if err != nil {
		return nil, err
	}

	summaries := make([]ThreadSummary, 0, len(order))
	for _, id := range order {
		u, ok := users[id]
		if !ok {
			continue
		}
		summaries = append(summaries, ThreadSummary{
			Counterpart: u.ToCompact(),
			LastMessage: latest[id],
			Unread:      unread[id],
		})
	}
	return summaries, nil
}

// OpenThread returns the full conversation with other, oldest first, after
// marking every unread message from other to viewer as read.
func (s *MessagingService) OpenThread(ctx context.Context, viewer, other *models.User) ([]models.Message, error) {
	var msgs []models.Message
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Messages.MarkThreadRead(ctx, viewer.ID, other.ID); err != nil {
			return err
		}
		var err error
		msgs, err = tx.Messages.GetThread(ctx, viewer.ID, other.ID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return msgs, nil
}

// Edit replaces the body of a message the viewer sent and marks it edited.
func (s *MessagingService) Edit(ctx context.Context, viewer *models.User, messageID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, apperrors.InvalidField("body", "message is too long")
	}

	var msg *models.Message
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		msg, err = tx.Messages.GetMessageByID(ctx, messageID)
		if err != nil {
			return storeErr(err, apperrors.ErrMessageNotFound)
		}
		if msg.SenderID != viewer.ID {
			return apperrors.ErrNotMessageSender
		}
		if !s.hasPayload(body, msg.ImageFile != "", msg.SharedPostID != nil) {
			return apperrors.ErrEmptyMessage
		}
		return tx.Messages.UpdateMessageBody(ctx, messageID, body)
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	msg.Body = body
	msg.IsEdited = true
	return msg, nil
}

// Delete removes a message the viewer sent.
func (s *MessagingService) Delete(ctx context.Context, viewer *models.User, messageID uint) error {
	return s.store.Transaction(ctx, func(tx *repositories.Store) error {
		msg, err := tx.Messages.GetMessageByID(ctx, messageID)
		if err != nil {
			return storeErr(err, apperrors.ErrMessageNotFound)
		}
		if msg.SenderID != viewer.ID {
			return apperrors.ErrNotMessageSender
		}
		return storeErr(tx.Messages.DeleteMessage(ctx, messageID), apperrors.ErrMessageNotFound)
	})
}

// TopChatUsers ranks counterparts by total messages exchanged, ties going to
// the earliest contact. Remaining slots are filled with the viewer's
// followers in the order they followed. A limit of zero uses the configured default.
func (s *MessagingService) TopChatUsers(ctx context.Context, viewer *models.User, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = s.cfg.TopChatLimit
	}

	counts, err := s.store.Messages.GetCounterpartCounts(ctx, viewer.ID, limit)
	if err != nil {
		return nil, storeErr(err, nil)
	}

	seen := map[uint]bool{viewer.ID: true}
	ids := make([]uint, 0, limit)
	for _, c := range counts {
		if seen[c.CounterpartID] {
			continue
		}
		seen[c.CounterpartID] = true
		ids = append(ids, c.CounterpartID)
	}

	if len(ids) < limit {
		followerIDs, err := s.store.Follows.GetFollowerIDs(ctx, viewer.ID)
		if err != nil {
			return nil, storeErr(err, nil)
		}
		for _, id := range followerIDs {
			if len(ids) >= limit {
				break
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	ranked := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			ranked = append(ranked, u)
		}
	}
	return ranked, nil
}

// UnreadCount is the number of unread messages addressed to viewer.
func (s *MessagingService) UnreadCount(ctx context.Context, viewer *models.User) (int64, error) {
	count, err := s.store.Messages.GetUnreadCount(ctx, viewer.ID)
	return count, storeErr(err, nil)
}

func (s *MessagingService) hasPayload(body string, hasImage, hasSharedPost bool) bool {
	if body != "" || hasImage {
		return true
	}
	return hasSharedPost && s.cfg.AllowSharedOnly
}

func (s *MessagingService) checkPreference(ctx context.Context, sender, recipient *models.User) error {
	switch recipient.MsgPreference {
	case models.MsgNone:
		return apperrors.ErrMessagingDisabled
	case models.MsgFollowers:
		following, err := s.store.Follows.IsFollowing(ctx, sender.ID, recipient.ID)
		if err != nil {
			return storeErr(err, nil)
		}
		if !following {
			return apperrors.ErrMessagingFollowers
		}
	}
	return nil
}

func (s *MessagingService) usersByID(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	users, err := s.store.Users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
