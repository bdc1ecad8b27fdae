package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PictureStore persists uploaded pictures and returns the path clients use to fetch them.
type PictureStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Delete removes a picture by the path Save returned. Missing pictures are not an error.
	Delete(ctx context.Context, path string) error
}

// ObjectKey derives a collision-free storage key from an uploaded file name,
// keeping only its lower-cased extension.
func ObjectKey(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(original, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return uuid.NewString() + ext
}
