package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/testutil"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, f *fixture, username, email string) *models.User {
	t.Helper()
	u, err := f.identity.Register(context.Background(), RegisterInput{
		Username: username, Email: email, Password: "secret1", Password2: "secret1",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := register(t, f, "alice", "Alice@Example.com")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.False(t, u.IsVerified)
	assert.Equal(t, models.MsgEveryone, u.MsgPreference)
	require.Len(t, f.mailer.sent, 1)
	assert.Contains(t, f.mailer.sent[0].Body, "http://localhost:8080/verify/")

	got, err := f.identity.Authenticate(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.identity.Authenticate(ctx, "alice@example.com", "wrong")
	assert.Equal(t, apperrors.ErrInvalidCredentials, err)

	_, err = f.identity.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, apperrors.ErrInvalidCredentials, err)
}

func TestFindByEmailIgnoresCase(t *testing.T) {
	f := newFixture(t)
	u := register(t, f, "alice", "user@example.com")

	got, err := f.identity.FindByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	register(t, f, "alice", "alice@example.com")

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@b.co", Password: "secret1", Password2: "secret1"}, "username"},
		{"bad email", RegisterInput{Username: "carol", Email: "nope", Password: "secret1", Password2: "secret1"}, "email"},
		{"short password", RegisterInput{Username: "carol", Email: "c@b.co", Password: "123", Password2: "123"}, "password"},
		{"mismatch", RegisterInput{Username: "carol", Email: "c@b.co", Password: "secret1", Password2: "secret2"}, "password2"},
		{"taken username", RegisterInput{Username: "alice", Email: "c@b.co", Password: "secret1", Password2: "secret1"}, "username"},
		{"taken email", RegisterInput{Username: "carol", Email: "ALICE@example.com", Password: "secret1", Password2: "secret1"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.identity.Register(context.Background(), tt.in)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.CodeInvalidArgument, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := register(t, f, "alice", "alice@example.com")

	token, err := f.tokens.Issue(u.ID)
	require.NoError(t, err)

	verified, err := f.identity.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	_, err = f.identity.VerifyEmail(ctx, token+"x")
	assert.Equal(t, apperrors.ErrInvalidToken, err)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(7)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.Equal(t, apperrors.ErrInvalidToken, err)

	other := NewTokenIssuer("other-secret")
	fresh, err := NewTokenIssuer("secret").Issue(7)
	require.NoError(t, err)
	_, err = other.Parse(fresh)
	assert.Equal(t, apperrors.ErrInvalidToken, err)

	id, err := NewTokenIssuer("secret").Parse(fresh)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}

func TestLoginWithOAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "google", Name: "No Mail"})
	assert.Equal(t, apperrors.ErrOAuthNoEmail, err)

	existing := register(t, f, "alice", "alice@example.com")
	u, err := f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "firebase", Email: "Alice@example.com", EmailVerified: true, FirebaseUID: "fb-1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)

	again, err := f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "firebase", Email: "changed@example.com", EmailVerified: true, FirebaseUID: "fb-1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.ID)

	testutil.CreateUser(t, f.db, "Bob_Smith")
	created, err := f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "google", Email: "bob@example.com", EmailVerified: true, Name: "Bob Smith"})
	require.NoError(t, err)
	assert.Equal(t, "Bob_Smith1", created.Username)
	assert.True(t, created.IsVerified)
	assert.False(t, created.HasPassword())

	_, err = f.identity.Authenticate(ctx, "bob@example.com", "")
	assert.Equal(t, apperrors.ErrInvalidCredentials, err)
}

func TestLoginWithOAuthUnverifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	victim := register(t, f, "victim", "victim@example.com")
	_, err := f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "firebase", Email: "VICTIM@example.com", FirebaseUID: "other-uid"})
	assert.Equal(t, apperrors.ErrOAuthEmailUnverified, err)

	stored, err := f.store.Users.GetUserByID(ctx, victim.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FirebaseUID)

	_, err = f.store.Users.GetUserByFirebaseUID(ctx, "other-uid")
	assert.Error(t, err)

	_, err = f.identity.LoginWithOAuth(ctx, OAuthProfile{Provider: "google", Email: "newcomer@example.com", Name: "New Comer"})
	assert.Equal(t, apperrors.ErrOAuthEmailUnverified, err)
	_, err = f.store.Users.GetUserByEmail(ctx, "newcomer@example.com")
	assert.Error(t, err)
}

func TestUpdateProfileAndPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := register(t, f, "alice", "alice@example.com")
	register(t, f, "bob", "bob@example.com")

	_, err := f.identity.UpdateProfile(ctx, alice, UpdateProfileInput{Username: "bob"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "username")

	updated, err := f.identity.UpdateProfile(ctx, alice, UpdateProfileInput{
		Username: "alice2",
		Avatar:   &ImageUpload{Filename: "me.webp", Reader: strings.NewReader("webp")},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.True(t, strings.HasPrefix(updated.ImageFile, "https://images.test/avatars/"))

	_, err = f.identity.UpdatePreferences(ctx, updated, models.Preferences{MsgPreference: "sometimes"})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	prefs := models.DefaultPreferences()
	prefs.MsgPreference = models.MsgFollowers
	prefs.FeedSorting = models.SortPopular
	_, err = f.identity.UpdatePreferences(ctx, updated, prefs)
	require.NoError(t, err)

	stored, err := f.identity.GetByUsername(ctx, "alice2")
	require.NoError(t, err)
	assert.Equal(t, models.MsgFollowers, stored.MsgPreference)
	assert.Equal(t, models.SortPopular, stored.FeedSorting)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	testutil.CreateUser(t, f.db, "Malice")
	testutil.CreatePost(t, f.db, alice, "About ALICE", time.Now())

	res, err := f.identity.Search(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, res.Users, 2)
	assert.Len(t, res.Posts, 1)

	empty, err := f.identity.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
}
