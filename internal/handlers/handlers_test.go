package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/writer/backend/internal/handlers"
	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/internal/router"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/anonto42/writer/backend/internal/testutil"
	"github.com/anonto42/writer/backend/pkg/logger"
	"github.com/anonto42/writer/backend/pkg/mailer"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/anonto42/writer/backend/pkg/oauth"
	"github.com/anonto42/writer/backend/pkg/storage"
	"github.com/anonto42/writer/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGoogle struct {
	profile *oauth.Profile
	err     error
}

func (f *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.test/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*oauth.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeVerifier struct {
	token *auth.Token
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken != "good-token" {
		return nil, errors.New("bad token")
	}
	return f.token, nil
}

type app struct {
	e        *echo.Echo
	google   *fakeGoogle
	verifier *fakeVerifier
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	log := logger.Discard()
	m := metrics.New()
	images := storage.NewLocalStore(t.TempDir(), "http://writer.test")
	identity := services.NewIdentityService(store, services.NewTokenIssuer("test-secret"),
		mailer.NewSMTPMailer(mailer.SMTPConfig{}), images, m, log, "http://writer.test")

	a := &app{
		google:   &fakeGoogle{profile: &oauth.Profile{Email: "Gina@Example.com", EmailVerified: true, Name: "Gina G"}},
		verifier: &fakeVerifier{token: &auth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "fire@example.com", "email_verified": true, "name": "Fire Fly"}}},
	}
	sessions := middleware.NewSessions("test-session-secret", false, log)
	deps := &router.Deps{
		Identity:      identity,
		Feed:          services.NewFeedService(store),
		Graph:         services.NewGraphService(store, m),
		Engagement:    services.NewEngagementService(store, m),
		Posts:         services.NewPostService(store, images),
		Messaging:     services.NewMessagingService(store, images, m, services.MessagingConfig{AllowSharedOnly: true}),
		Notifications: services.NewNotificationService(store),
		Sessions:      sessions,
		Google:        a.google,
		Firebase:      a.verifier,
		Metrics:       m,
		Log:           log,
	}

	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.NewHTTPErrorHandler(log)
	e.Use(sessions.LoadUser(identity))
	router.SetupRoutes(e, deps)
	a.e = e
	return a
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (a *app) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if data != nil && resp.Success {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

// sessionCookie returns the last session cookie written by the response.
func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionName {
			found = c
		}
	}
	return found
}

func (a *app) register(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/register", url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password":  {"secret123"},
		"password2": {"secret123"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/login", url.Values{
		"email":    {strings.ToUpper(username) + "@EXAMPLE.COM"},
		"password": {"secret123"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	return cookie
}

func TestRegister_ValidationErrors(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/register", url.Values{
		"username":  {"al"},
		"email":     {"not-an-email"},
		"password":  {"secret123"},
		"password2": {"different"},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_ARGUMENT", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "username")
	assert.Contains(t, resp.Error.Fields, "email")
	assert.Contains(t, resp.Error.Fields, "password2")
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newApp(t)
	a.register(t, "alice")

	rec := a.do(t, http.MethodPost, "/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong-password"},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, rec, nil).Error.Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestProfile_RequiresLogin(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/messages", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := a.register(t, "alice")
	rec = a.do(t, http.MethodGet, "/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	decode(t, rec, &data)
	assert.Equal(t, "alice", data.User.Username)
	assert.Equal(t, "alice@example.com", data.User.Email)
}

func TestLogout_ClearsSession(t *testing.T) {
	a := newApp(t)
	cookie := a.register(t, "alice")

	rec := a.do(t, http.MethodGet, "/logout", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)

	rec = a.do(t, http.MethodGet, "/profile", nil, cleared)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	a := newApp(t)
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	rec := a.do(t, http.MethodPost, "/post/new", url.Values{"title": {"Hello"}, "body": {"First post"}}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID         uint   `json:"id"`
		AuthorName string `json:"author_name"`
		Author     struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "alice", created.AuthorName)
	assert.Equal(t, "alice", created.Author.Username)
	postURL := "/post/" + itoa(created.ID)

	rec = a.do(t, http.MethodPost, postURL+"/update", url.Values{"title": {"Hijack"}, "body": {"x"}}, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, postURL+"/like", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	var like struct {
		Liked bool  `json:"liked"`
		Count int64 `json:"like_count"`
	}
	decode(t, rec, &like)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.Count)

	rec = a.do(t, http.MethodPost, postURL+"/comment", url.Values{"body": {"nice"}}, bob)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/notifications/unread-count", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread struct {
		Count int64 `json:"count"`
	}
	decode(t, rec, &unread)
	assert.Equal(t, int64(2), unread.Count)

	rec = a.do(t, http.MethodGet, postURL, nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Post struct {
			Title     string `json:"title"`
			LikeCount int64  `json:"like_count"`
			IsLiked   bool   `json:"is_liked"`
		} `json:"post"`
		Comments []struct {
			Body string `json:"body"`
		} `json:"comments"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, "Hello", detail.Post.Title)
	assert.Equal(t, int64(1), detail.Post.LikeCount)
	assert.True(t, detail.Post.IsLiked)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "nice", detail.Comments[0].Body)
	assert.NotContains(t, rec.Body.String(), "@example.com")

	rec = a.do(t, http.MethodPost, postURL+"/delete", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, postURL, nil, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeed_AnonymousHidesEmails(t *testing.T) {
	a := newApp(t)
	alice := a.register(t, "alice")
	rec := a.do(t, http.MethodPost, "/post/new", url.Values{"title": {"Public"}, "body": {"hi"}}, alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Posts []json.RawMessage `json:"posts"`
		Count int               `json:"count"`
	}
	decode(t, rec, &page)
	assert.Len(t, page.Posts, 1)
	assert.Equal(t, 1, page.Count)
	assert.NotContains(t, rec.Body.String(), "@example.com")
}

func TestFollowAndMessage(t *testing.T) {
	a := newApp(t)
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	rec := a.do(t, http.MethodPost, "/follow/alice", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/follow/bob", nil, bob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/user/alice", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Followers   int64 `json:"followers"`
		IsFollowing bool  `json:"is_following"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, int64(1), profile.Followers)
	assert.True(t, profile.IsFollowing)

	rec = a.do(t, http.MethodGet, "/user/alice/followers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)
	assert.NotContains(t, rec.Body.String(), "@example.com")

	rec = a.do(t, http.MethodPost, "/chat/alice", url.Values{"body": {"hi alice"}}, bob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/messages", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox struct {
		Threads []struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
			Unread int64 `json:"unread"`
		} `json:"threads"`
		Unread int64 `json:"unread"`
	}
	decode(t, rec, &inbox)
	require.Len(t, inbox.Threads, 1)
	assert.Equal(t, "bob", inbox.Threads[0].User.Username)
	assert.Equal(t, int64(1), inbox.Unread)

	rec = a.do(t, http.MethodGet, "/chat/bob", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/messages", nil, alice)
	decode(t, rec, &inbox)
	assert.Equal(t, int64(0), inbox.Unread)
}

func TestChat_PaddedMaxLengthMessageAccepted(t *testing.T) {
	a := newApp(t)
	a.register(t, "alice")
	bob := a.register(t, "bob")
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/follow/alice", nil, bob).Code)

	body := strings.Repeat("x", 500)
	rec := a.do(t, http.MethodPost, "/chat/alice", url.Values{"body": {"  " + body + "\n"}}, bob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"body":"`+body+`"`)

	rec = a.do(t, http.MethodPost, "/chat/alice", url.Values{"body": {body + "x"}}, bob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGoogleLogin_StateMismatchRedirectsToLogin(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/login/google", nil, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "https://accounts.test/auth"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = a.do(t, http.MethodGet, "/login/google/callback?state=forged&code=abc", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = a.do(t, http.MethodGet, "/login", nil, sessionCookie(rec))
	var page struct {
		Flashes []string `json:"flashes"`
	}
	decode(t, rec, &page)
	assert.Len(t, page.Flashes, 1)
}

func TestGoogleLogin_CreatesAccount(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/login/google", nil, nil)
	location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	rec = a.do(t, http.MethodGet, "/login/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil, sessionCookie(rec))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	rec = a.do(t, http.MethodGet, "/profile", nil, sessionCookie(rec))
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		User struct {
			Email      string `json:"email"`
			IsVerified bool   `json:"is_verified"`
		} `json:"user"`
	}
	decode(t, rec, &data)
	assert.Equal(t, "gina@example.com", data.User.Email)
	assert.True(t, data.User.IsVerified)
}

func TestGoogleLogin_ExchangeFailure(t *testing.T) {
	a := newApp(t)
	a.google.err = errors.New("upstream down")

	rec := a.do(t, http.MethodGet, "/login/google", nil, nil)
	location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)

	rec = a.do(t, http.MethodGet, "/login/google/callback?state="+url.QueryEscape(location.Query().Get("state"))+"&code=abc", nil, sessionCookie(rec))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestFirebaseLogin(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/login/firebase", url.Values{"id_token": {"bad-token"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/login/firebase", url.Values{"id_token": {"good-token"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, sessionCookie(rec))

	var data struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	decode(t, rec, &data)
	assert.Equal(t, "fire@example.com", data.User.Email)
	assert.NotEmpty(t, data.User.Username)
}

func TestGoogleLogin_UnverifiedEmailRefused(t *testing.T) {
	a := newApp(t)
	a.google.profile = &oauth.Profile{Email: "gina@example.com", EmailVerified: false, Name: "Gina G"}

	rec := a.do(t, http.MethodGet, "/login/google", nil, nil)
	location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)

	rec = a.do(t, http.MethodGet, "/login/google/callback?state="+url.QueryEscape(location.Query().Get("state"))+"&code=abc", nil, sessionCookie(rec))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = a.do(t, http.MethodGet, "/profile", nil, sessionCookie(rec))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFirebaseLogin_UnverifiedEmailCannotClaimAccount(t *testing.T) {
	a := newApp(t)
	a.register(t, "victim")
	a.verifier.token = &auth.Token{UID: "fb-other", Claims: map[string]interface{}{
		"email": "VICTIM@example.com", "email_verified": false,
	}}

	rec := a.do(t, http.MethodPost, "/login/firebase", url.Values{"id_token": {"good-token"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a token without the claim is treated as unverified
	a.verifier.token.Claims = map[string]interface{}{"email": "someone@example.com"}
	rec = a.do(t, http.MethodPost, "/login/firebase", url.Values{"id_token": {"good-token"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotifications_MarkRead(t *testing.T) {
	a := newApp(t)
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/follow/alice", nil, bob).Code)

	rec := a.do(t, http.MethodGet, "/notifications", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Notifications []struct {
			ID    uint `json:"id"`
			Actor struct {
				Username string `json:"username"`
			} `json:"actor"`
		} `json:"notifications"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, "bob", list.Notifications[0].Actor.Username)
	target := "/notifications/" + itoa(list.Notifications[0].ID) + "/read"

	rec = a.do(t, http.MethodPost, target, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, target, nil, alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/notifications/unread-count", nil, alice)
	var unread struct {
		Count int64 `json:"count"`
	}
	decode(t, rec, &unread)
	assert.Equal(t, int64(0), unread.Count)
}

func TestHealthCheck(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
