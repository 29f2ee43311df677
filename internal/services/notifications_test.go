package services

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/testutil"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNotification(t *testing.T, f *fixture, owner, actor *models.User, at time.Time) *models.Notification {
	t.Helper()
	actorID := actor.ID
	n := &models.Notification{
		UserID:    owner.ID,
		ActorID:   &actorID,
		Type:      models.NotificationLike,
		Message:   actor.Username + " liked your post",
		CreatedAt: at,
	}
	require.NoError(t, f.store.Notifications.CreateNotification(context.Background(), n))
	return n
}

func TestNotificationList_PagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		addNotification(t, f, alice, bob, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := f.notes.List(ctx, alice, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))
	require.NotNil(t, page.Items[0].Actor)
	assert.Equal(t, "bob", page.Items[0].Actor.Username)

	page, err = f.notes.List(ctx, alice, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.notes.List(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultNotificationLimit, page.Limit)
}

func TestNotificationGrouped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	now := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	f.notes.now = func() time.Time { return now }

	addNotification(t, f, alice, bob, now.Add(-time.Hour))
	addNotification(t, f, alice, bob, now.Add(-24*time.Hour))
	addNotification(t, f, alice, bob, now.Add(-4*24*time.Hour))
	addNotification(t, f, alice, bob, now.Add(-30*24*time.Hour))

	g, err := f.notes.Grouped(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, g.Today, 1)
	assert.Len(t, g.Yesterday, 1)
	assert.Len(t, g.ThisWeek, 1)
	assert.Len(t, g.Older, 1)
}

func TestNotificationMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	n := addNotification(t, f, alice, bob, time.Now().UTC())
	addNotification(t, f, alice, bob, time.Now().UTC())

	err := f.notes.MarkRead(ctx, bob, n.ID)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	err = f.notes.MarkRead(ctx, alice, 999)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	require.NoError(t, f.notes.MarkRead(ctx, alice, n.ID))
	require.NoError(t, f.notes.MarkRead(ctx, alice, n.ID))

	unread, err := f.notes.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	changed, err := f.notes.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	unread, err = f.notes.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
