package repositories

import (
	"context"
	"time"

	"github.com/circlesocial/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	// FindByIdentifier matches a username (case-insensitive) or an email address.
	FindByIdentifier(ctx context.Context, identifier string) (models.User, error)
	// FindByIDs returns the users that exist, in the order of ids.
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate, at time.Time) (models.User, error)
	IncrementProfileViews(ctx context.Context, id string) error
}

// FriendRepository mutates the symmetric friend relation stored on users.
type FriendRepository interface {
	// ToggleFriend removes the edge between userID and friendID when userID
	// already lists friendID and adds it on both sides otherwise.
	ToggleFriend(ctx context.Context, userID, friendID string, at time.Time) (user, friend models.User, err error)
}

// PostRepository defines data access for posts and their likes.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	FindByID(ctx context.Context, id string) (models.Post, error)
	// List returns posts newest first.
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
	// ToggleLike flips userID's membership in the post's like set atomically.
	ToggleLike(ctx context.Context, postID, userID string) (models.Post, error)
}
