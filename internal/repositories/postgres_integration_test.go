package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/circlesocial/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("CIRCLE_SKIP_DB_TESTS") != "" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("database tests disabled")
	}
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	ann := createTestUser(t, repo, "Ann", "ann@example.com")

	dupName := models.User{ID: uuid.NewString(), Username: "ANN", PasswordHash: "h", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, dupName); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	dupEmail := models.User{ID: uuid.NewString(), Username: "other", Email: "ann@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	shadow := models.User{ID: uuid.NewString(), Username: "ann@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, shadow); err == nil {
		t.Fatal("expected a username containing @ to be rejected")
	}

	// Users without an email must not collide with each other.
	createTestUser(t, repo, "noemail1", "")
	createTestUser(t, repo, "noemail2", "")

	byName, err := repo.FindByIdentifier(ctx, "ann")
	if err != nil || byName.ID != ann.ID {
		t.Fatalf("find by username: %+v %v", byName, err)
	}
	byEmail, err := repo.FindByIdentifier(ctx, "ANN@example.com")
	if err != nil || byEmail.ID != ann.ID {
		t.Fatalf("find by email: %+v %v", byEmail, err)
	}
	if byEmail.PasswordHash != "password-hash" {
		t.Fatalf("expected password hash to round-trip, got %q", byEmail.PasswordHash)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("list users: %d %v", len(all), err)
	}
}

func TestPostgresUserRepository_ProfileAndViews(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	ann := createTestUser(t, repo, "ann", "")

	occupation := "Pilot"
	updated, err := repo.UpdateProfile(ctx, ann.ID, models.ProfileUpdate{Occupation: &occupation}, time.Now().UTC())
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Occupation != "Pilot" || updated.Location != ann.Location {
		t.Fatalf("unexpected profile after update: %+v", updated)
	}

	if _, err := repo.UpdateProfile(ctx, uuid.NewString(), models.ProfileUpdate{Occupation: &occupation}, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := repo.IncrementProfileViews(ctx, ann.ID); err != nil {
			t.Fatalf("increment views: %v", err)
		}
	}
	fetched, _ := repo.FindByID(ctx, ann.ID)
	if fetched.ViewedProfile != 3 {
		t.Fatalf("expected 3 views got %d", fetched.ViewedProfile)
	}
}

func TestPostgresUserRepository_ToggleFriend(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	ann := createTestUser(t, repo, "ann", "")
	bo := createTestUser(t, repo, "bo", "")

	user, friend, err := repo.ToggleFriend(ctx, ann.ID, bo.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("befriend: %v", err)
	}
	if !user.HasFriend(bo.ID) || !friend.HasFriend(ann.ID) {
		t.Fatalf("expected mirrored edge: %v / %v", user.Friends, friend.Friends)
	}

	user, friend, err = repo.ToggleFriend(ctx, ann.ID, bo.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("unfriend: %v", err)
	}
	if len(user.Friends) != 0 || len(friend.Friends) != 0 {
		t.Fatalf("expected edge removed: %v / %v", user.Friends, friend.Friends)
	}

	if _, _, err := repo.ToggleFriend(ctx, ann.ID, uuid.NewString(), time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresUserRepository_ConcurrentToggleStaysSymmetric(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	ann := createTestUser(t, repo, "ann", "")
	bo := createTestUser(t, repo, "bo", "")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := ann.ID, bo.ID
			if i%2 == 1 {
				a, b = b, a
			}
			// Serialization failures are acceptable here; only the end state matters.
			_, _, _ = repo.ToggleFriend(ctx, a, b, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	a, _ := repo.FindByID(ctx, ann.ID)
	b, _ := repo.FindByID(ctx, bo.ID)
	if a.HasFriend(bo.ID) != b.HasFriend(ann.ID) {
		t.Fatalf("asymmetric friend edge: %v / %v", a.Friends, b.Friends)
	}
}

func TestPostgresPostRepository_ListAndLike(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	posts := NewPostgresPostRepository(testPool)
	ann := createTestUser(t, users, "ann", "")
	bo := createTestUser(t, users, "bo", "")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	older := models.Post{ID: uuid.NewString(), UserID: ann.ID, Username: ann.Username, Description: "older", CreatedAt: base}
	newer := models.Post{ID: uuid.NewString(), UserID: bo.ID, Username: bo.Username, Description: "newer", CreatedAt: base.Add(time.Minute)}
	for _, post := range []models.Post{older, newer} {
		if err := posts.Create(ctx, post); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	orphan := models.Post{ID: uuid.NewString(), UserID: uuid.NewString(), CreatedAt: base}
	if err := posts.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown author, got %v", err)
	}

	feed, err := posts.List(ctx, models.PostFilter{})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != newer.ID || feed[1].ID != older.ID {
		t.Fatalf("unexpected feed order: %+v", feed)
	}

	mine, err := posts.List(ctx, models.PostFilter{UserID: ann.ID})
	if err != nil || len(mine) != 1 || mine[0].ID != older.ID {
		t.Fatalf("unexpected author posts: %+v %v", mine, err)
	}

	liked, err := posts.ToggleLike(ctx, older.ID, bo.ID)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if len(liked.Likes) != 1 || liked.Likes[0] != bo.ID {
		t.Fatalf("expected exactly one like, got %v", liked.Likes)
	}

	unliked, err := posts.ToggleLike(ctx, older.ID, bo.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if len(unliked.Likes) != 0 {
		t.Fatalf("expected likes cleared, got %v", unliked.Likes)
	}

	if _, err := posts.ToggleLike(ctx, uuid.NewString(), bo.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE posts, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username, email string) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: "password-hash",
		Location:     "Lisbon",
		Friends:      []string{},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}
