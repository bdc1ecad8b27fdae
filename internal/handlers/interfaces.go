package handlers

import (
	"context"
	"io"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/posts"
)

// Authenticator registers accounts and exchanges credentials for tokens.
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.User, error)
	Login(ctx context.Context, identifier, password string) (models.User, auth.Token, error)
}

// TokenVerifier validates Authorization headers on protected routes.
type TokenVerifier interface {
	VerifyHeader(header string) (auth.Principal, error)
}

// Directory serves user profiles.
type Directory interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id, viewerID string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (models.User, error)
	Invalidate(ctx context.Context)
}

// FriendGraph toggles and lists friendships.
type FriendGraph interface {
	Toggle(ctx context.Context, userID, friendID string) (models.User, models.User, error)
	Friends(ctx context.Context, userID string) ([]models.User, error)
}

// PostService creates, lists and likes posts.
type PostService interface {
	Create(ctx context.Context, in posts.CreateInput) (models.Post, error)
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (models.Post, error)
}

// PictureStore persists uploaded pictures.
type PictureStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}
