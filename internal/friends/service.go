package friends

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/circlesocial/backend/internal/events"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/repositories"
)

// Store is the persistence the friend graph needs.
type Store interface {
	repositories.FriendRepository
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Service mutates and reads the symmetric friend graph.
type Service struct {
	store  Store
	events events.Publisher

	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time
}

// NewService wires a Service. publisher may be nil.
func NewService(store Store, publisher events.Publisher) *Service {
	if store == nil {
		panic("friends: store must not be nil")
	}
	return &Service{store: store, events: publisher}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Toggle adds the friend edge between userID and friendID when absent and
// removes it when present. Both updated users are returned.
func (s *Service) Toggle(ctx context.Context, userID, friendID string) (models.User, models.User, error) {
	ctx, span := logging.StartSpan(ctx, "friends.toggle")
	defer span.End()

	userID = strings.TrimSpace(userID)
	friendID = strings.TrimSpace(friendID)
	switch {
	case userID == "":
		return models.User{}, models.User{}, span.Fail(models.Invalid("id", "is required"))
	case friendID == "":
		return models.User{}, models.User{}, span.Fail(models.Invalid("friendId", "is required"))
	case userID == friendID:
		return models.User{}, models.User{}, span.Fail(models.Invalid("friendId", "cannot befriend yourself"))
	}

	now := s.now()
	user, friend, err := s.store.ToggleFriend(ctx, userID, friendID, now)
	if err != nil {
		return models.User{}, models.User{}, span.Fail(fmt.Errorf("toggle friend: %w", err))
	}

	connected := user.HasFriend(friendID)
	logging.FromContext(ctx).Info("friend toggled",
		slog.String("user_id", userID),
		slog.String("friend_id", friendID),
		slog.Bool("connected", connected),
	)
	events.Emit(ctx, s.events, logging.FromContext(ctx), events.Event{
		Type:       events.TypeFriendToggled,
		ActorID:    userID,
		SubjectID:  friendID,
		Attributes: map[string]string{"connected": strconv.FormatBool(connected)},
		OccurredAt: now,
	})

	return user, friend, nil
}

// Friends resolves the friend list of userID into users. Ids that no longer
// resolve are skipped.
func (s *Service) Friends(ctx context.Context, userID string) ([]models.User, error) {
	ctx, span := logging.StartSpan(ctx, "friends.list")
	defer span.End()

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, span.Fail(fmt.Errorf("find user: %w", err))
	}
	if len(user.Friends) == 0 {
		return []models.User{}, nil
	}

	friends, err := s.store.FindByIDs(ctx, user.Friends)
	if err != nil {
		return nil, span.Fail(fmt.Errorf("find friends: %w", err))
	}
	return friends, nil
}
