package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/post/new", h.NewPostForm, requireLogin)
	g.POST("/post/new", h.CreatePost, requireLogin)
	g.GET("/post/:id", h.GetPost)
	g.GET("/post/:id/update", h.EditPostForm, requireLogin)
	g.POST("/post/:id/update", h.UpdatePost, requireLogin)
	g.POST("/post/:id/delete", h.DeletePost, requireLogin)
}

func (h *PostHandler) NewPostForm(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"csrf_token":  csrfToken(c),
		"author_name": user.Username,
	})
}

// CreatePost creates a new post. An optional image arrives as multipart "image".
func (h *PostHandler) CreatePost(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	image, closeImage, err := formImage(c, "image")
	if err != nil {
		return err
	}
	defer closeImage()

	post, err := h.posts.Create(c.Request().Context(), user, services.PostInput{
		Title:      req.Title,
		Body:       req.Body,
		AuthorName: req.AuthorName,
		Image:      image,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, postView(post, user))
}

// GetPost returns a post with its comments and the viewer's flags.
func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.posts.Get(c.Request().Context(), middleware.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, detail)
}

// EditPostForm returns the current values of a post the viewer owns.
func (h *PostHandler) EditPostForm(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := h.posts.GetOwned(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"post":       postView(post, user),
		"csrf_token": csrfToken(c),
	})
}

// UpdatePost edits a post. Only the owner may update it.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	image, closeImage, err := formImage(c, "image")
	if err != nil {
		return err
	}
	defer closeImage()

	post, err := h.posts.Update(c.Request().Context(), user, id, services.PostInput{
		Title:       req.Title,
		Body:        req.Body,
		AuthorName:  req.AuthorName,
		Image:       image,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, postView(post, user))
}

// DeletePost removes a post with its likes, comments and bookmarks.
func (h *PostHandler) DeletePost(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.posts.Delete(c.Request().Context(), user, id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"deleted": id})
}

// postView wraps a post owned by author.
func postView(post *models.Post, author *models.User) services.FeedItem {
	compact := author.ToCompact()
	return services.FeedItem{Post: *post, Author: &compact}
}
