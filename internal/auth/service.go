package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/circlesocial/backend/internal/events"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/repositories"
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Location    string
	Occupation  string
	PicturePath string
}

// Service registers and authenticates users.
type Service struct {
	users  repositories.UserRepository
	tokens *TokenManager
	events events.Publisher

	// Cost is the bcrypt work factor used for new hashes.
	Cost int
	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService wires a Service. publisher may be nil.
func NewService(users repositories.UserRepository, tokens *TokenManager, publisher events.Publisher) *Service {
	if users == nil || tokens == nil {
		panic("auth: user repository and token manager must not be nil")
	}
	return &Service{users: users, tokens: tokens, events: publisher, Cost: bcrypt.DefaultCost}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Register creates a new account. The password is stored only as a bcrypt hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "auth.register")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" {
		return models.User{}, span.Fail(models.Invalid("username", "is required"))
	}
	// Login identifiers containing @ resolve as emails.
	if strings.Contains(in.Username, "@") {
		return models.User{}, span.Fail(models.Invalid("username", "must not contain @"))
	}
	if in.Password == "" {
		return models.User{}, span.Fail(models.Invalid("password", "is required"))
	}
	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			return models.User{}, span.Fail(models.Invalid("email", "is not a valid address"))
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.Cost)
	if err != nil {
		return models.User{}, span.Fail(fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		Location:     strings.TrimSpace(in.Location),
		Occupation:   strings.TrimSpace(in.Occupation),
		PicturePath:  in.PicturePath,
		Friends:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, span.Fail(fmt.Errorf("create user: %w", err))
	}

	logging.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	events.Emit(ctx, s.events, logging.FromContext(ctx), events.Event{
		Type:       events.TypeUserRegistered,
		ActorID:    user.ID,
		SubjectID:  user.ID,
		Attributes: map[string]string{"username": user.Username},
		OccurredAt: now,
	})

	return user, nil
}

// Login verifies the password for the account named by identifier, which
// may be a username or an email address, and issues a session token.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.User, Token, error) {
	ctx, span := logging.StartSpan(ctx, "auth.login")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return models.User{}, Token{}, span.Fail(ErrInvalidCredentials)
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return models.User{}, Token{}, span.Fail(ErrInvalidCredentials)
		}
		return models.User{}, Token{}, span.Fail(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, Token{}, span.Fail(ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.User{}, Token{}, span.Fail(fmt.Errorf("issue token: %w", err))
	}

	logging.FromContext(ctx).Info("user logged in", slog.String("user_id", user.ID))
	return user, token, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("circle-dummy-password"), s.Cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
