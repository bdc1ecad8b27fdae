package posts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circlesocial/backend/internal/events"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/repositories"
)

// MaxDescriptionLength bounds the text body of a post.
const MaxDescriptionLength = 2000

// UserLookup resolves post authors and likers.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// CreateInput describes a new post.
type CreateInput struct {
	UserID      string
	Description string
	PicturePath string
}

// Service creates, lists and likes posts.
type Service struct {
	posts  repositories.PostRepository
	users  UserLookup
	events events.Publisher

	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time
}

// NewService wires a Service. publisher may be nil.
func NewService(posts repositories.PostRepository, users UserLookup, publisher events.Publisher) *Service {
	if posts == nil || users == nil {
		panic("posts: post repository and user lookup must not be nil")
	}
	return &Service{posts: posts, users: users, events: publisher}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Create stores a post authored by in.UserID with an empty like set.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Post, error) {
	ctx, span := logging.StartSpan(ctx, "posts.create")
	defer span.End()

	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" && in.PicturePath == "" {
		return models.Post{}, span.Fail(models.Invalid("description", "a description or picture is required"))
	}
	if len(in.Description) > MaxDescriptionLength {
		return models.Post{}, span.Fail(models.Invalid("description", "is too long"))
	}

	author, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return models.Post{}, span.Fail(fmt.Errorf("find author: %w", err))
	}

	post := models.Post{
		ID:              uuid.NewString(),
		UserID:          author.ID,
		Username:        author.Username,
		FirstName:       author.FirstName,
		LastName:        author.LastName,
		Location:        author.Location,
		UserPicturePath: author.PicturePath,
		Description:     in.Description,
		PicturePath:     in.PicturePath,
		Likes:           []string{},
		CreatedAt:       s.now(),
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return models.Post{}, span.Fail(fmt.Errorf("create post: %w", err))
	}

	logging.FromContext(ctx).Info("post created", slog.String("post_id", post.ID), slog.String("user_id", post.UserID))
	events.Emit(ctx, s.events, logging.FromContext(ctx), events.Event{
		Type:       events.TypePostCreated,
		ActorID:    post.UserID,
		SubjectID:  post.ID,
		OccurredAt: post.CreatedAt,
	})

	return post, nil
}

// List returns posts newest first, narrowed by filter.
func (s *Service) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	ctx, span := logging.StartSpan(ctx, "posts.list")
	defer span.End()

	if filter.UserID != "" {
		if _, err := s.users.FindByID(ctx, filter.UserID); err != nil {
			return nil, span.Fail(fmt.Errorf("find author: %w", err))
		}
	}

	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, span.Fail(fmt.Errorf("list posts: %w", err))
	}
	return posts, nil
}

// ToggleLike adds userID to the post's likes when absent and removes it when present.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (models.Post, error) {
	ctx, span := logging.StartSpan(ctx, "posts.toggle_like")
	defer span.End()

	if strings.TrimSpace(postID) == "" {
		return models.Post{}, span.Fail(models.Invalid("id", "is required"))
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return models.Post{}, span.Fail(fmt.Errorf("find user: %w", err))
	}

	post, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return models.Post{}, span.Fail(fmt.Errorf("toggle like: %w", err))
	}

	liked := post.LikedBy(userID)
	events.Emit(ctx, s.events, logging.FromContext(ctx), events.Event{
		Type:       events.TypePostLikeToggled,
		ActorID:    userID,
		SubjectID:  post.ID,
		Attributes: map[string]string{"liked": strconv.FormatBool(liked)},
	})

	return post, nil
}
