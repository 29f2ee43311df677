package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	engagement *services.EngagementService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(engagement *services.EngagementService) *LikeHandler {
	return &LikeHandler{engagement: engagement}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.POST("/post/:id/like", h.ToggleLike, requireLogin)
}

// ToggleLike likes the post, or removes the like when it already exists.
// The response carries the new state and like count.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.engagement.ToggleLike(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, result)
}
