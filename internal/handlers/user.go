package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	identity *services.IdentityService
	graph    *services.GraphService
	feed     *services.FeedService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(identity *services.IdentityService, graph *services.GraphService, feed *services.FeedService) *UserHandler {
	return &UserHandler{identity: identity, graph: graph, feed: feed}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/profile", h.GetProfile, requireLogin)
	g.POST("/profile", h.UpdateProfile, requireLogin)
	g.GET("/settings", h.GetSettings, requireLogin)
	g.POST("/settings", h.UpdateSettings, requireLogin)
	g.GET("/user/:handle", h.GetUser)
	g.GET("/search", h.Search)
}

// GetProfile returns the logged-in user's own profile, email included.
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	counts, err := h.graph.Counts(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"user":       user,
		"counts":     counts,
		"csrf_token": csrfToken(c),
	})
}

// UpdateProfile changes username, email and avatar. The avatar arrives as the
// multipart field "picture".
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	avatar, closeAvatar, err := formImage(c, "picture")
	if err != nil {
		return err
	}
	defer closeAvatar()

	updated, err := h.identity.UpdateProfile(c.Request().Context(), user, services.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
		Avatar:   avatar,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": updated})
}

func (h *UserHandler) GetSettings(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"preferences": user.Preferences,
		"csrf_token":  csrfToken(c),
	})
}

func (h *UserHandler) UpdateSettings(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}

	var req models.UpdatePreferencesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.identity.UpdatePreferences(c.Request().Context(), user, models.Preferences{
		MsgPreference:     req.MsgPreference,
		ProfileVisibility: req.ProfileVisibility,
		TwoFactorEnabled:  req.TwoFactorEnabled,
		EmailNotifEnabled: req.EmailNotifEnabled,
		FeedSorting:       req.FeedSorting,
		AccentColor:       req.AccentColor,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"preferences": updated.Preferences})
}

// GetUser renders a profile page. Posts of a private profile are only listed
// for the owner and their followers.
func (h *UserHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := middleware.CurrentUser(c)

	owner, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}

	counts, err := h.graph.Counts(ctx, owner)
	if err != nil {
		return err
	}

	isFollowing := false
	if viewer != nil && viewer.ID != owner.ID {
		if isFollowing, err = h.graph.IsFollowing(ctx, viewer.ID, owner.ID); err != nil {
			return err
		}
	}

	result, err := h.feed.UserPosts(ctx, viewer, owner)
	if err != nil {
		return err
	}
	items, err := h.feed.Enrich(ctx, viewer, result.Posts)
	if err != nil {
		return err
	}

	return ok(c, http.StatusOK, echo.Map{
		"user":            owner.ToCompact(),
		"last_seen":       owner.LastSeen,
		"posts":           items,
		"profile_private": result.Private,
		"followers":       counts.Followers,
		"following":       counts.Following,
		"is_following":    isFollowing,
		"is_self":         viewer != nil && viewer.ID == owner.ID,
	})
}

func (h *UserHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	result, err := h.identity.Search(ctx, c.QueryParam("q"))
	if err != nil {
		return err
	}
	posts, err := h.feed.Enrich(ctx, middleware.CurrentUser(c), result.Posts)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"query": result.Query,
		"users": compactUsers(result.Users),
		"posts": posts,
	})
}
