package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// NewHTTPErrorHandler renders every error as
// {"success": false, "error": {"code", "message", "fields"}}. Internal causes
// are logged and never sent to the client.
func NewHTTPErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := &apperrors.AppError{Code: apperrors.CodeInternal, Message: "internal server error"}

		var he *echo.HTTPError
		if appErr, ok := apperrors.As(err); ok {
			status = appErr.Code.HTTPStatus()
			body = &apperrors.AppError{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
			if appErr.Code == apperrors.CodeInternal {
				body.Message = "internal server error"
			}
		} else if errors.As(err, &he) {
			status = he.Code
			body = &apperrors.AppError{Code: codeForStatus(he.Code), Message: http.StatusText(he.Code)}
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
		}

		if status >= http.StatusInternalServerError {
			log.WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).WithError(err).Error("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, map[string]interface{}{"success": false, "error": body})
		}
		if writeErr != nil {
			log.WithError(writeErr).Warn("failed to write error response")
		}
	}
}

func codeForStatus(status int) apperrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return apperrors.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthenticated
	case http.StatusForbidden:
		return apperrors.CodePermissionDenied
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperrors.CodeNotFound
	case http.StatusConflict:
		return apperrors.CodeAlreadyExists
	default:
		if status < http.StatusInternalServerError {
			return apperrors.CodeInvalidArgument
		}
		return apperrors.CodeInternal
	}
}
