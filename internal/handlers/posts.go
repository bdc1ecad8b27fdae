package handlers

import (
	"net/http"

	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/posts"
)

// PostHandler implements the post endpoints.
type PostHandler struct {
	Posts     PostService
	Pictures  PictureStore
	MaxUpload int64
}

// Create handles POST /api/v1/post. The author is always the caller.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	f, err := parseForm(w, r, h.MaxUpload)
	if err != nil {
		writeError(ctx, w, err, "")
		return
	}
	defer f.cleanup()

	if f.get("description") == "" && f.file == nil {
		respondMessage(ctx, w, http.StatusBadRequest, "description: a description or picture is required")
		return
	}

	picturePath, err := savePicture(ctx, h.Pictures, f)
	if err != nil {
		writeError(ctx, w, err, "picture")
		return
	}

	post, err := h.Posts.Create(ctx, posts.CreateInput{
		UserID:      caller.UserID,
		Description: f.get("description"),
		PicturePath: picturePath,
	})
	if err != nil {
		discardPicture(ctx, h.Pictures, picturePath)
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusCreated, post)
}

// Feed handles GET /api/v1/post.
func (h PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.PostFilter{})
}

// UserPosts handles GET /api/v1/post/{userId}/posts.
func (h PostHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.PostFilter{UserID: r.PathValue("userId")})
}

func (h PostHandler) list(w http.ResponseWriter, r *http.Request, filter models.PostFilter) {
	ctx := r.Context()
	if _, ok := principal(w, r); !ok {
		return
	}

	out, err := h.Posts.List(ctx, filter)
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Like handles PATCH /api/v1/post/{id}/like, toggling the caller's like.
func (h PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	post, err := h.Posts.ToggleLike(ctx, r.PathValue("id"), caller.UserID)
	if err != nil {
		writeError(ctx, w, err, "post")
		return
	}
	respondJSON(ctx, w, http.StatusOK, post)
}
