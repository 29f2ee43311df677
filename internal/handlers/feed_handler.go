package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed *services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/", h.GetFeed)
	g.GET("/explore", h.GetExplore)
	g.GET("/saved", h.GetSaved, requireLogin)
}

// FeedPage is an enriched post list.
type FeedPage struct {
	Posts []services.FeedItem `json:"posts"`
	Sort  string              `json:"sort,omitempty"`
	Count int                 `json:"count"`
}

// GetFeed returns the home feed. ?sort= overrides the viewer's preference;
// anonymous visitors always get the latest posts.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	viewer := middleware.CurrentUser(c)
	posts, err := h.feed.Feed(c.Request().Context(), viewer, c.QueryParam("sort"))
	if err != nil {
		return err
	}
	sort := models.SortLatest
	if viewer != nil {
		sort = services.ResolveSort(viewer, c.QueryParam("sort"))
	}
	return h.render(c, viewer, posts, sort)
}

func (h *FeedHandler) GetExplore(c echo.Context) error {
	viewer := middleware.CurrentUser(c)
	posts, err := h.feed.Explore(c.Request().Context(), viewer, c.QueryParam("sort"))
	if err != nil {
		return err
	}
	return h.render(c, viewer, posts, services.ResolveSort(viewer, c.QueryParam("sort")))
}

func (h *FeedHandler) GetSaved(c echo.Context) error {
	viewer, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	posts, err := h.feed.SavedPosts(c.Request().Context(), viewer)
	if err != nil {
		return err
	}
	return h.render(c, viewer, posts, "")
}

func (h *FeedHandler) render(c echo.Context, viewer *models.User, posts []models.Post, sort string) error {
	items, err := h.feed.Enrich(c.Request().Context(), viewer, posts)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, FeedPage{Posts: items, Sort: sort, Count: len(items)})
}
