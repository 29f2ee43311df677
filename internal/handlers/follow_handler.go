package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	graph    *services.GraphService
	identity *services.IdentityService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(graph *services.GraphService, identity *services.IdentityService) *FollowHandler {
	return &FollowHandler{graph: graph, identity: identity}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.POST("/follow/:handle", h.FollowUser, requireLogin)
	g.POST("/unfollow/:handle", h.UnfollowUser, requireLogin)
	g.GET("/user/:handle/followers", h.GetFollowers)
	g.GET("/user/:handle/following", h.GetFollowing)
}

// FollowUser follows a user. Following someone already followed succeeds
// without a second notification.
func (h *FollowHandler) FollowUser(c echo.Context) error {
	viewer, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	target, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}
	if err := h.graph.Follow(ctx, viewer, target); err != nil {
		return err
	}
	return h.followState(c, target.ID, true)
}

func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	viewer, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	target, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}
	if err := h.graph.Unfollow(ctx, viewer, target); err != nil {
		return err
	}
	return h.followState(c, target.ID, false)
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}
	followers, err := h.graph.Followers(ctx, user)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": user.ToCompact(), "followers": compactUsers(followers)})
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}
	following, err := h.graph.Following(ctx, user)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": user.ToCompact(), "following": compactUsers(following)})
}

func (h *FollowHandler) followState(c echo.Context, targetID uint, following bool) error {
	return ok(c, http.StatusOK, echo.Map{"user_id": targetID, "is_following": following})
}
