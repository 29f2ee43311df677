package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmarking posts
type SavedPostHandler struct {
	engagement *services.EngagementService
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(engagement *services.EngagementService) *SavedPostHandler {
	return &SavedPostHandler{engagement: engagement}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.POST("/post/:id/save", h.ToggleSave, requireLogin)
}

// ToggleSave bookmarks the post, or removes the bookmark when present.
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	saved, err := h.engagement.ToggleSave(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"post_id": id, "saved": saved})
}
