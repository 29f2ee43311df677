package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func postIDs(posts []models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestListFeed_FollowedOnlyAndOrder(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewPostgresPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	testutil.Follow(t, db, alice, bob)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	own := testutil.CreatePost(t, db, alice, "own", base)
	followed := testutil.CreatePost(t, db, bob, "followed", base.Add(time.Hour))
	testutil.CreatePost(t, db, carol, "stranger", base.Add(2*time.Hour))

	posts, err := repo.ListFeed(ctx, repositories.FeedQuery{ViewerID: alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{followed.ID, own.ID}, postIDs(posts))
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "bob", posts[0].Author.Username)

	all, err := repo.ListFeed(ctx, repositories.FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListFeed_PopularBreaksTimestampTies(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewPostgresPostRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := testutil.CreatePost(t, db, alice, "first", at)
	second := testutil.CreatePost(t, db, alice, "second", at)
	testutil.Like(t, db, bob, first)
	testutil.Like(t, db, carol, first)
	testutil.Like(t, db, bob, second)

	posts, err := repo.ListFeed(context.Background(), repositories.FeedQuery{ViewerID: alice.ID, Popular: true})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, first.ID, posts[0].ID)
	assert.Equal(t, int64(2), posts[0].LikeCount)
	assert.Equal(t, int64(1), posts[1].LikeCount)
}

func TestDeletePost_Cascades(t *testing.T) {
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice, "doomed", time.Now())

	testutil.Like(t, db, bob, post)
	require.NoError(t, store.Comments.CreateComment(ctx, &models.Comment{Body: "hi", UserID: bob.ID, PostID: post.ID}))
	_, err := store.SavedPosts.SavePost(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	msg := &models.Message{SenderID: bob.ID, RecipientID: alice.ID, SharedPostID: &post.ID}
	require.NoError(t, store.Messages.CreateMessage(ctx, msg))

	require.NoError(t, store.Posts.DeletePost(ctx, post.ID))

	for _, model := range []interface{}{&models.Like{}, &models.Comment{}, &models.SavedPost{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("post_id = ?", post.ID).Count(&count).Error)
		assert.Zero(t, count)
	}

	kept, err := store.Messages.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.SharedPostID)

	_, err = store.Posts.GetPostByID(ctx, post.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = store.Posts.DeletePost(ctx, post.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestGetSavedPosts_MostRecentFirst(t *testing.T) {
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	p1 := testutil.CreatePost(t, db, alice, "one", time.Now())
	p2 := testutil.CreatePost(t, db, alice, "two", time.Now())

	_, err := store.SavedPosts.SavePost(ctx, alice.ID, p1.ID)
	require.NoError(t, err)
	_, err = store.SavedPosts.SavePost(ctx, alice.ID, p2.ID)
	require.NoError(t, err)

	posts, err := store.Posts.GetSavedPosts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID, p1.ID}, postIDs(posts))
}

func TestSearchPosts_CaseInsensitive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewPostgresPostRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	match := testutil.CreatePost(t, db, alice, "Gophers Unite", time.Now())
	testutil.CreatePost(t, db, alice, "Something else", time.Now())

	posts, err := repo.SearchPosts(context.Background(), "gopher", 20)
	require.NoError(t, err)
	assert.Equal(t, []uint{match.ID}, postIDs(posts))
}
