package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/circlesocial/backend/internal/models"
)

// InMemoryUserRepository implements UserRepository and FriendRepository for
// tests and local development.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	order []string
}

// NewInMemoryUserRepository returns an empty in-memory user store.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]models.User)}
}

// Create stores a new user, enforcing unique usernames and emails.
func (r *InMemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return ErrConflict
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return ErrConflict
		}
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
		// usernames and emails share one login namespace
		if existing.Email != "" && strings.EqualFold(existing.Email, user.Username) {
			return ErrConflict
		}
		if user.Email != "" && strings.EqualFold(existing.Username, user.Email) {
			return ErrConflict
		}
	}

	r.users[user.ID] = cloneUser(user)
	r.order = append(r.order, user.ID)
	return nil
}

// FindByID fetches a user by id.
func (r *InMemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByIdentifier fetches a user by username or email. A username match wins.
func (r *InMemoryUserRepository) FindByIdentifier(_ context.Context, identifier string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if user := r.users[id]; strings.EqualFold(user.Username, identifier) {
			return cloneUser(user), nil
		}
	}
	email := strings.ToLower(identifier)
	for _, id := range r.order {
		if user := r.users[id]; user.Email != "" && user.Email == email {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByIDs returns the known users among ids.
func (r *InMemoryUserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, cloneUser(user))
		}
	}
	return out, nil
}

// List returns every user in registration order.
func (r *InMemoryUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneUser(r.users[id]))
	}
	return out, nil
}

// UpdateProfile applies update to the stored user.
func (r *InMemoryUserRepository) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate, at time.Time) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	update.Apply(&user)
	user.UpdatedAt = at
	r.users[id] = user
	return cloneUser(user), nil
}

// IncrementProfileViews bumps the viewedProfile counter.
func (r *InMemoryUserRepository) IncrementProfileViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.ViewedProfile++
	r.users[id] = user
	return nil
}

// ToggleFriend flips the edge on both users under a single lock.
func (r *InMemoryUserRepository) ToggleFriend(_ context.Context, userID, friendID string, at time.Time) (models.User, models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, models.User{}, ErrNotFound
	}
	friend, ok := r.users[friendID]
	if !ok {
		return models.User{}, models.User{}, ErrNotFound
	}

	if user.HasFriend(friendID) {
		user.Friends = without(user.Friends, friendID)
		friend.Friends = without(friend.Friends, userID)
	} else {
		user.Friends = with(user.Friends, friendID)
		friend.Friends = with(friend.Friends, userID)
	}
	user.UpdatedAt = at
	friend.UpdatedAt = at

	r.users[userID] = user
	r.users[friendID] = friend
	return cloneUser(user), cloneUser(friend), nil
}

// InMemoryPostRepository implements PostRepository for tests and local development.
type InMemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]models.Post
	seq   map[string]int
	next  int
}

// NewInMemoryPostRepository returns an empty in-memory post store.
func NewInMemoryPostRepository() *InMemoryPostRepository {
	return &InMemoryPostRepository{
		posts: make(map[string]models.Post),
		seq:   make(map[string]int),
	}
}

// Create stores a new post.
func (r *InMemoryPostRepository) Create(_ context.Context, post models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; exists {
		return ErrConflict
	}
	r.posts[post.ID] = clonePost(post)
	r.seq[post.ID] = r.next
	r.next++
	return nil
}

// FindByID fetches a post by id.
func (r *InMemoryPostRepository) FindByID(_ context.Context, id string) (models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return clonePost(post), nil
}

// List returns posts newest first; posts created at the same instant are
// ordered by insertion, latest first.
func (r *InMemoryPostRepository) List(_ context.Context, filter models.PostFilter) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Post, 0, len(r.posts))
	for _, post := range r.posts {
		if filter.UserID != "" && post.UserID != filter.UserID {
			continue
		}
		out = append(out, clonePost(post))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out, nil
}

// ToggleLike flips userID's membership in the post's like set.
func (r *InMemoryPostRepository) ToggleLike(_ context.Context, postID, userID string) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[postID]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	post.Likes, _ = models.Toggle(post.Likes, userID)
	r.posts[postID] = post
	return clonePost(post), nil
}

func with(set []string, id string) []string {
	for _, existing := range set {
		if existing == id {
			return set
		}
	}
	return append(append([]string{}, set...), id)
}

func without(set []string, id string) []string {
	out := make([]string, 0, len(set))
	for _, existing := range set {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func cloneUser(user models.User) models.User {
	user.Friends = append([]string{}, user.Friends...)
	return user
}

func clonePost(post models.Post) models.Post {
	post.Likes = append([]string{}, post.Likes...)
	return post
}

var _ UserRepository = (*InMemoryUserRepository)(nil)
var _ FriendRepository = (*InMemoryUserRepository)(nil)
var _ PostRepository = (*InMemoryPostRepository)(nil)
