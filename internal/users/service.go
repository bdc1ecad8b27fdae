package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/circlesocial/backend/internal/cache"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/repositories"
)

const directoryKey = "users:directory"

// Service serves the public user directory and individual profiles.
type Service struct {
	users     repositories.UserRepository
	directory *cache.JSON[[]models.User]
	// generation advances on every Invalidate so a List that raced with one
	// does not store what it read.
	generation atomic.Uint64

	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time
}

// NewService wires a Service. directory may be nil to disable caching.
func NewService(users repositories.UserRepository, directory *cache.JSON[[]models.User]) *Service {
	if users == nil {
		panic("users: repository must not be nil")
	}
	return &Service{users: users, directory: directory}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// List returns every user in registration order. Results are served from the
// directory cache when one is configured.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	ctx, span := logging.StartSpan(ctx, "users.list")
	defer span.End()

	logger := logging.FromContext(ctx)
	if s.directory != nil {
		cached, ok, err := s.directory.Get(ctx, directoryKey)
		if err != nil {
			logger.Warn("directory cache read failed", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	generation := s.generation.Load()
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, span.Fail(fmt.Errorf("list users: %w", err))
	}

	if s.directory != nil && s.generation.Load() == generation {
		if err := s.directory.Set(ctx, directoryKey, users); err != nil {
			logger.Warn("directory cache write failed", slog.Any("error", err))
		}
		if s.generation.Load() != generation {
			s.drop(ctx)
		}
	}
	return users, nil
}

// Get returns the profile for id. A view by anyone other than the owner
// increments the profile's view counter.
func (s *Service) Get(ctx context.Context, id, viewerID string) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "users.get")
	defer span.End()

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return models.User{}, span.Fail(fmt.Errorf("find user: %w", err))
	}

	if viewerID != "" && viewerID != user.ID {
		if err := s.users.IncrementProfileViews(ctx, user.ID); err != nil {
			return models.User{}, span.Fail(fmt.Errorf("count profile view: %w", err))
		}
		user.ViewedProfile++
	}
	return user, nil
}

// UpdateProfile applies the editable profile fields to the user.
func (s *Service) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "users.update_profile")
	defer span.End()

	if update.Empty() {
		return models.User{}, span.Fail(models.Invalid("", "no profile fields to update"))
	}
	for _, field := range []*string{update.FirstName, update.LastName, update.Location, update.Occupation} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}

	user, err := s.users.UpdateProfile(ctx, id, update, s.now())
	if err != nil {
		return models.User{}, span.Fail(fmt.Errorf("update profile: %w", err))
	}

	s.Invalidate(ctx)
	logging.FromContext(ctx).Info("profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// Invalidate drops the cached directory so the next List reloads it.
func (s *Service) Invalidate(ctx context.Context) {
	if s.directory == nil {
		return
	}
	s.generation.Add(1)
	s.drop(ctx)
}

func (s *Service) drop(ctx context.Context) {
	if err := s.directory.Delete(ctx, directoryKey); err != nil {
		logging.FromContext(ctx).Warn("directory cache invalidation failed", slog.Any("error", err))
	}
}
