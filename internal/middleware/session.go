package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	SessionName = "writer_session"

	// Context keys set by LoadUser.
	ContextUserID = "user_id"
	ContextUser   = "user"

	sessionUserID     = "user_id"
	sessionOAuthState = "oauth_state"

	rememberMaxAge   = 30 * 24 * 3600
	lastSeenInterval = time.Minute
)

// UserLoader resolves the identity stored in the session.
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	TouchLastSeen(ctx context.Context, userID uint) error
}

// Sessions wraps the cookie store that carries the logged-in user id, OAuth
// state and flash warnings.
type Sessions struct {
	store *sessions.CookieStore
	log   *logrus.Logger
}

func NewSessions(secret string, secure bool, log *logrus.Logger) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, log: log}
}

func (s *Sessions) get(c echo.Context) *sessions.Session {
	// A cookie that fails to decode yields a fresh session.
	sess, err := s.store.Get(c.Request(), SessionName)
	if err != nil {
		s.log.WithError(err).Debug("discarding unreadable session cookie")
	}
	return sess
}

// Login binds userID to the session. A remembered session outlives the browser.
func (s *Sessions) Login(c echo.Context, userID uint, remember bool) error {
	sess := s.get(c)
	sess.Values[sessionUserID] = userID
	if remember {
		sess.Options.MaxAge = rememberMaxAge
	}
	return sess.Save(c.Request(), c.Response())
}

func (s *Sessions) Logout(c echo.Context) error {
	sess := s.get(c)
	delete(sess.Values, sessionUserID)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// Flash queues a warning shown on the next page the client loads.
func (s *Sessions) Flash(c echo.Context, message string) {
	sess := s.get(c)
	sess.AddFlash(message)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		s.log.WithError(err).Warn("failed to save flash message")
	}
}

// Flashes drains the queued warnings.
func (s *Sessions) Flashes(c echo.Context) []string {
	sess := s.get(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		s.log.WithError(err).Warn("failed to clear flash messages")
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (s *Sessions) SetOAuthState(c echo.Context, state string) error {
	sess := s.get(c)
	sess.Values[sessionOAuthState] = state
	return sess.Save(c.Request(), c.Response())
}

// PopOAuthState returns and forgets the stored OAuth state.
func (s *Sessions) PopOAuthState(c echo.Context) string {
	sess := s.get(c)
	state, _ := sess.Values[sessionOAuthState].(string)
	delete(sess.Values, sessionOAuthState)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		s.log.WithError(err).Warn("failed to clear oauth state")
	}
	return state
}

// LoadUser resolves the session's user id into the request context and
// refreshes last_seen at most once a minute. Requests without a valid
// session continue anonymously.
func (s *Sessions) LoadUser(users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := s.get(c)
			id, ok := sess.Values[sessionUserID].(uint)
			if !ok || id == 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			user, err := users.GetByID(ctx, id)
			if err != nil {
				if apperrors.CodeOf(err) != apperrors.CodeNotFound {
					return err
				}
				// account is gone; drop the stale session
				if err := s.Logout(c); err != nil {
					s.log.WithError(err).Warn("failed to clear stale session")
				}
				return next(c)
			}

			if time.Since(user.LastSeen) > lastSeenInterval {
				if err := users.TouchLastSeen(ctx, user.ID); err != nil {
					s.log.WithFields(logrus.Fields{"user_id": user.ID}).WithError(err).Warn("failed to update last_seen")
				}
			}

			SetUser(c, user)
			return next(c)
		}
	}
}

// SetUser stores the identity for the rest of the request.
func SetUser(c echo.Context, user *models.User) {
	c.Set(ContextUserID, user.ID)
	c.Set(ContextUser, user)
}

// CurrentUser returns the identity resolved for this request, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(ContextUser).(*models.User)
	return user
}

// RequireLogin rejects anonymous requests.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentUser(c) == nil {
				return apperrors.ErrNotAuthenticated
			}
			return next(c)
		}
	}
}
