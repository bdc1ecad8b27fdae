package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/storage"
)

const (
	defaultMaxUpload = 8 << 20
	pictureField     = "picture"
)

// form is a decoded request body that may carry a picture upload.
type form struct {
	values  map[string]string
	file    multipart.File
	header  *multipart.FileHeader
	cleanup func()
}

func (f form) get(key string) string {
	return f.values[key]
}

// parseForm accepts multipart/form-data (optionally with a picture) and
// falls back to a JSON object of string fields.
func parseForm(w http.ResponseWriter, r *http.Request, maxUpload int64) (form, error) {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		values := map[string]string{}
		if err := decodeJSON(w, r, &values); err != nil {
			return form{}, err
		}
		return form{values: values, cleanup: func() {}}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+maxJSONBody)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return form{}, err
		}
		return form{}, models.Invalid("", "invalid multipart body")
	}

	out := form{values: map[string]string{}, cleanup: func() { _ = r.MultipartForm.RemoveAll() }}
	for key, vals := range r.MultipartForm.Value {
		if len(vals) > 0 {
			out.values[key] = vals[0]
		}
	}

	file, header, err := r.FormFile(pictureField)
	switch {
	case err == nil:
		if header.Size > maxUpload {
			file.Close()
			out.cleanup()
			return form{}, models.Invalid(pictureField, "file is too large")
		}
		out.file, out.header = file, header
		cleanup := out.cleanup
		out.cleanup = func() { file.Close(); cleanup() }
	case errors.Is(err, http.ErrMissingFile):
	default:
		out.cleanup()
		return form{}, models.Invalid(pictureField, "unreadable file")
	}
	return out, nil
}

// savePicture stores the uploaded picture, if any, and returns its path.
func savePicture(ctx context.Context, store PictureStore, f form) (string, error) {
	if f.file == nil {
		return "", nil
	}
	if store == nil {
		return "", errors.New("picture storage is not configured")
	}
	path, err := store.Save(ctx, storage.ObjectKey(f.header.Filename), f.file)
	if err != nil {
		return "", fmt.Errorf("save picture: %w", err)
	}
	return path, nil
}

// discardPicture removes a picture saved for a request that was then rejected.
func discardPicture(ctx context.Context, store PictureStore, path string) {
	if path == "" || store == nil {
		return
	}
	if err := store.Delete(ctx, path); err != nil {
		logging.FromContext(ctx).Warn("remove picture of rejected request", "path", path, "error", err)
	}
}
