// Package services holds the application operations. Each service runs its
// store mutations inside one transaction and reports failures as
// apperrors.AppError values.
package services

import (
	"errors"
	"io"

	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/storage"
	"gorm.io/gorm"
)

// ImageUpload is an image stream received from a client.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// storeErr maps a repository error to notFound when the row is missing and to
// an internal error otherwise. AppErrors pass through unchanged.
func storeErr(err, notFound error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if notFound != nil && isNotFound(err) {
		return notFound
	}
	return apperrors.Internal(err)
}

func imageErr(field string, err error) error {
	if errors.Is(err, storage.ErrUnsupportedImage) {
		return apperrors.InvalidField(field, "only jpg, jpeg, png, gif and webp images are allowed")
	}
	return apperrors.Internal(err)
}
