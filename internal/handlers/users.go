package handlers

import (
	"net/http"
	"strings"

	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
)

// UserHandler implements profile and friend endpoints.
type UserHandler struct {
	Directory Directory
	Graph     FriendGraph
}

// List handles GET /api/v1/user.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.Directory.List(ctx)
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, users)
}

// Get handles GET /api/v1/user/{id}.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.Directory.Get(ctx, r.PathValue("id"), caller.UserID)
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// Update handles PATCH /api/v1/user/{id}.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}

	var update models.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(ctx, w, err, "")
		return
	}

	user, err := h.Directory.UpdateProfile(ctx, id, update)
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// Friends handles GET /api/v1/user/{id}/friends.
func (h UserHandler) Friends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := principal(w, r); !ok {
		return
	}

	friends, err := h.Graph.Friends(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, friends)
}

// ToggleFriend handles PATCH /api/v1/user/{id}/friendId with a JSON body
// naming the friend.
func (h UserHandler) ToggleFriend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}

	var req toggleFriendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err, "")
		return
	}
	h.toggle(w, r, id, req.FriendID)
}

// ToggleFriendByPath handles PATCH /api/v1/user/{id}/{friendId}.
func (h UserHandler) ToggleFriendByPath(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}
	h.toggle(w, r, id, r.PathValue("friendId"))
}

// toggle runs after the caller has been checked against id.
func (h UserHandler) toggle(w http.ResponseWriter, r *http.Request, id, friendID string) {
	ctx := r.Context()

	user, friend, err := h.Graph.Toggle(ctx, id, strings.TrimSpace(friendID))
	if err != nil {
		writeError(ctx, w, err, "user")
		return
	}

	if h.Directory != nil {
		h.Directory.Invalidate(ctx)
	}
	logging.FromContext(ctx).Debug("friend edge toggled", "friend_id", friend.ID, "connected", user.HasFriend(friend.ID))
	respondJSON(ctx, w, http.StatusOK, toggleFriendResponse{User: user, Friend: friend})
}

type toggleFriendRequest struct {
	FriendID string `json:"friendId"`
}

type toggleFriendResponse struct {
	User   models.User `json:"user"`
	Friend models.User `json:"friend"`
}
