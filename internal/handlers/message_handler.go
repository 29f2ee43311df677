package handlers

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles direct messages between users
type MessageHandler struct {
	messaging *services.MessagingService
	identity  *services.IdentityService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messaging *services.MessagingService, identity *services.IdentityService) *MessageHandler {
	return &MessageHandler{messaging: messaging, identity: identity}
}

// RegisterMessageRoutes registers messaging routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group, requireLogin echo.MiddlewareFunc) {
	g.GET("/messages", h.GetInbox, requireLogin)
	g.GET("/chat/:handle", h.GetChat, requireLogin)
	g.POST("/chat/:handle", h.SendMessage, requireLogin)
	g.POST("/message/:id/edit", h.EditMessage, requireLogin)
	g.POST("/message/:id/delete", h.DeleteMessage, requireLogin)
	g.POST("/share_post/:id", h.SharePost, requireLogin)
}

// GetInbox lists one summary per conversation plus the quick-access users.
func (h *MessageHandler) GetInbox(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	threads, err := h.messaging.ListThreads(ctx, user)
	if err != nil {
		return err
	}
	top, err := h.messaging.TopChatUsers(ctx, user, 0)
	if err != nil {
		return err
	}
	unread, err := h.messaging.UnreadCount(ctx, user)
	if err != nil {
		return err
	}

	return ok(c, http.StatusOK, echo.Map{
		"threads":   threads,
		"top_users": compactUsers(top),
		"unread":    unread,
	})
}

// GetChat returns the conversation with :handle and marks the incoming
// messages read.
func (h *MessageHandler) GetChat(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	other, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}
	messages, err := h.messaging.OpenThread(ctx, user, other)
	if err != nil {
		return err
	}

	return ok(c, http.StatusOK, echo.Map{
		"user":       other.ToCompact(),
		"messages":   messages,
		"csrf_token": csrfToken(c),
	})
}

// SendMessage delivers a message to :handle. An image may be attached as
// multipart "image".
func (h *MessageHandler) SendMessage(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	image, closeImage, err := formImage(c, "image")
	if err != nil {
		return err
	}
	defer closeImage()

	ctx := c.Request().Context()
	recipient, err := h.identity.GetByUsername(ctx, c.Param("handle"))
	if err != nil {
		return err
	}

	in := services.SendInput{
		Sender:    user,
		Recipient: recipient,
		Body:      req.Body,
		Image:     image,
	}
	if req.SharedPostID != 0 {
		in.SharedPostID = &req.SharedPostID
	}

	msg, err := h.messaging.Send(ctx, in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, msg)
}

func (h *MessageHandler) EditMessage(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.EditMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.messaging.Edit(c.Request().Context(), user, id, req.Body)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.messaging.Delete(c.Request().Context(), user, id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"deleted": id})
}

// SharePost sends post :id to the recipient named in the body.
func (h *MessageHandler) SharePost(c echo.Context) error {
	user, err := getCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.SharePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	recipient, err := h.identity.GetByUsername(ctx, req.Recipient)
	if err != nil {
		return err
	}
	msg, err := h.messaging.SharePost(ctx, user, recipient, id, req.Body)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, msg)
}
