package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/notifications", h.GetNotifications, requireLogin)
	g.GET("/notifications/grouped", h.GetGroupedNotifications, requireLogin)
	g.GET("/notifications/unread-count", h.GetUnreadCount, requireLogin)
	g.POST("/notifications/read", h.MarkAllAsRead, requireLogin)
	g.POST("/notifications/:id/read", h.MarkAsRead, requireLogin)
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.notifications.List(c.Request().Context(), user, page, limit)
	if err != nil {
		return err
	}

	totalPages := int(math.Ceil(float64(result.Total) / float64(result.Limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": result.Items,
		},
		"meta": echo.Map{
			"currentPage":     result.Page,
			"totalPages":      totalPages,
			"totalItems":      result.Total,
			"itemsPerPage":    result.Limit,
			"hasNextPage":     result.Page < totalPages,
			"hasPreviousPage": result.Page > 1,
		},
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	grouped, err := h.notifications.Grouped(ctx, user)
	if err != nil {
		return err
	}
	unread, err := h.notifications.UnreadCount(ctx, user)
	if err != nil {
		return err
	}

	return ok(c, http.StatusOK, echo.Map{
		"notifications": grouped,
		"unreadCount":   unread,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), user, id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"id": id, "is_read": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	changed, err := h.notifications.MarkAllRead(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"marked": changed})
}
