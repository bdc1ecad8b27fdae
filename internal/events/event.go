package events

import (
	"context"
	"log/slog"
	"time"
)

// Event types emitted by the domain services.
const (
	TypeUserRegistered  = "user.registered"
	TypeFriendToggled   = "friend.toggled"
	TypePostCreated     = "post.created"
	TypePostLikeToggled = "post.like_toggled"
)

// Event is a fact about a state change, published after the change is stored.
type Event struct {
	Type       string            `json:"type"`
	ActorID    string            `json:"actorId"`
	SubjectID  string            `json:"subjectId"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }

// LogPublisher writes events to a structured logger. It is the sink used when
// no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, event Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("domain event",
		slog.String("type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("subject_id", event.SubjectID),
		slog.Any("attributes", event.Attributes),
	)
	return nil
}

// Emit publishes event through p, stamping OccurredAt when unset. Failures are
// logged and swallowed: the state change has already been committed.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("publish event failed", "type", event.Type, "error", err)
	}
}
