package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/labstack/echo/v4"
)

// csrfContextKey is where echo's CSRF middleware stores the token.
const csrfContextKey = "csrf"

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// getCurrentUser returns the logged-in user. Routes that call it sit behind
// middleware.RequireLogin.
func getCurrentUser(c echo.Context) (*models.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	return user, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidArg("invalid request payload")
	}
	return c.Validate(req)
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.InvalidArg("invalid " + name)
	}
	return uint(id), nil
}

// formImage opens an optional multipart image. The returned closer is never nil.
func formImage(c echo.Context, field string) (*services.ImageUpload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, apperrors.InvalidField(field, "could not read the uploaded file")
	}
	if fh.Size == 0 {
		return nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, apperrors.InvalidField(field, "could not read the uploaded file")
	}
	return &services.ImageUpload{Filename: fh.Filename, Reader: f}, func() { _ = f.Close() }, nil
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(csrfContextKey).(string)
	return token
}

func compactUsers(users []models.User) []models.UserCompact {
	out := make([]models.UserCompact, len(users))
	for i := range users {
		out[i] = users[i].ToCompact()
	}
	return out
}
