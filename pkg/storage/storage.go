// Package storage uploads user images (avatars, post images, message
// attachments) and returns the durable URL that is persisted on the row.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists an image stream and returns its public URL.
type ImageStore interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error)
}

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ErrUnsupportedImage is returned for files whose extension is not an image type.
var ErrUnsupportedImage = fmt.Errorf("unsupported image type")

// ObjectName builds a collision-free object key that keeps the original extension.
func ObjectName(folder, filename string) (string, string, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return path.Join(folder, uuid.NewString()+ext), contentType, nil
}
