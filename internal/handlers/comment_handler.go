package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	engagement *services.EngagementService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(engagement *services.EngagementService) *CommentHandler {
	return &CommentHandler{engagement: engagement}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.POST("/post/:id/comment", h.CreateComment, requireLogin)
	g.GET("/post/:id/comments", h.GetCommentsByPostID)
}

// CreateComment adds a comment and notifies the post owner.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.engagement.Comment(c.Request().Context(), user, id, req.Body)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, comment)
}

// GetCommentsByPostID lists a post's comments, oldest first.
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.engagement.Comments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, comments)
}
