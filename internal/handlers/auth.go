package handlers

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/oauth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// OAuthProvider runs an authorization code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

// IDTokenVerifier checks Firebase ID tokens. *auth.Client implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler handles registration, login and email verification.
type AuthHandler struct {
	identity *services.IdentityService
	sessions *middleware.Sessions
	google   OAuthProvider
	firebase IDTokenVerifier
	log      *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler. google and firebase may be nil
// when the provider is not configured.
func NewAuthHandler(identity *services.IdentityService, sessions *middleware.Sessions, google OAuthProvider, firebase IDTokenVerifier, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, sessions: sessions, google: google, firebase: firebase, log: log}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/register", h.RegisterForm)
	g.POST("/register", h.Register)
	g.GET("/login", h.LoginForm)
	g.POST("/login", h.Login)
	g.GET("/logout", h.Logout)
	g.GET("/login/google", h.GoogleLogin)
	g.GET("/login/google/callback", h.GoogleCallback)
	g.POST("/login/firebase", h.FirebaseLogin)
	g.GET("/verify/:token", h.VerifyEmail)
	g.POST("/verify/resend", h.ResendVerification, requireLogin)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" form:"id_token" validate:"required"`
}

func (h *AuthHandler) RegisterForm(c echo.Context) error {
	if middleware.CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return ok(c, http.StatusOK, h.formPage(c))
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.identity.Register(c.Request().Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{
		"user":    user,
		"message": "Your account has been created. Check your email to verify it, then log in.",
	})
}

func (h *AuthHandler) LoginForm(c echo.Context) error {
	if middleware.CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	page := h.formPage(c)
	page["google_enabled"] = h.google != nil
	page["firebase_enabled"] = h.firebase != nil
	return ok(c, http.StatusOK, page)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.identity.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if err := h.sessions.Login(c, user.ID, req.RememberMe); err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c); err != nil {
		return apperrors.Internal(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// GoogleLogin redirects to the consent page with a fresh state value.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	if h.google == nil {
		return apperrors.NotFound("google login is not configured")
	}
	state := uuid.NewString()
	if err := h.sessions.SetOAuthState(c, state); err != nil {
		return apperrors.Internal(err)
	}
	return c.Redirect(http.StatusSeeOther, h.google.AuthCodeURL(state))
}

// GoogleCallback finishes the code flow. Every failure sends the browser back
// to /login with a warning.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.google == nil {
		return apperrors.NotFound("google login is not configured")
	}

	expected := h.sessions.PopOAuthState(c)
	if expected == "" || c.QueryParam("state") != expected {
		return h.oauthFailure(c, "Login failed: the sign-in request expired, please try again.", nil)
	}
	if reason := c.QueryParam("error"); reason != "" {
		return h.oauthFailure(c, "Login with Google was cancelled.", nil)
	}
	code := c.QueryParam("code")
	if code == "" {
		return h.oauthFailure(c, "Login failed: Google did not return an authorization code.", nil)
	}

	ctx := c.Request().Context()
	profile, err := h.google.Exchange(ctx, code)
	if err != nil {
		return h.oauthFailure(c, "Login failed: could not fetch your Google profile.", err)
	}

	user, err := h.identity.LoginWithOAuth(ctx, services.OAuthProfile{
		Provider:      "google",
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		Name:          profile.Name,
		Picture:       profile.Picture,
	})
	if err != nil {
		if appErr, isApp := apperrors.As(err); isApp && appErr.Code != apperrors.CodeInternal {
			return h.oauthFailure(c, appErr.Message, nil)
		}
		return h.oauthFailure(c, "Login failed, please try again.", err)
	}

	if err := h.sessions.Login(c, user.ID, false); err != nil {
		return apperrors.Internal(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// FirebaseLogin verifies a Firebase ID token and opens a session for the
// matching account.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebase == nil {
		return apperrors.NotFound("firebase login is not configured")
	}

	var req FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	token, err := h.firebase.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		h.log.WithError(err).Info("firebase id token rejected")
		return apperrors.Unauthorized("invalid or expired Firebase ID token")
	}

	email, _ := token.Claims["email"].(string)
	verified, _ := token.Claims["email_verified"].(bool)
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	user, err := h.identity.LoginWithOAuth(ctx, services.OAuthProfile{
		Provider:      "firebase",
		Email:         email,
		EmailVerified: verified,
		Name:          name,
		Picture:       picture,
		FirebaseUID:   token.UID,
	})
	if err != nil {
		return err
	}

	if err := h.sessions.Login(c, user.ID, false); err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	user, err := h.identity.VerifyEmail(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"verified": true, "username": user.Username})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperrors.InvalidArg("your email is already verified")
	}
	if err := h.identity.SendVerification(c.Request().Context(), user); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "A new verification email has been sent."})
}

func (h *AuthHandler) oauthFailure(c echo.Context, message string, cause error) error {
	if cause != nil {
		h.log.WithError(cause).Warn("oauth login failed")
	}
	h.sessions.Flash(c, message)
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) formPage(c echo.Context) echo.Map {
	return echo.Map{
		"csrf_token": csrfToken(c),
		"flashes":    h.sessions.Flashes(c),
	}
}
