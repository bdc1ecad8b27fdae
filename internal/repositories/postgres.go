package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/circlesocial/backend/internal/db"
	"github.com/circlesocial/backend/internal/models"
)

const userColumns = `id, username, COALESCE(email, ''), first_name, last_name, password_hash,
        location, occupation, picture_path, friends, viewed_profile, impressions, created_at, updated_at`

const postColumns = `id, user_id, username, first_name, last_name, location, user_picture_path,
        description, picture_path, likes, created_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users and
// their friend edges.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, username_key, email, first_name, last_name, password_hash,
            location, occupation, picture_path, friends, viewed_profile, impressions, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, user.ID, user.Username, strings.ToLower(user.Username), nullIfEmpty(user.Email), user.FirstName, user.LastName,
		user.PasswordHash, user.Location, user.Occupation, user.PicturePath, friends,
		user.ViewedProfile, user.Impressions, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

// FindByIdentifier fetches a user by username or email address.
func (r *PostgresUserRepository) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	key := strings.ToLower(identifier)
	user, err := scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE username_key = $1 OR email = $1
        ORDER BY (username_key = $1) DESC
        LIMIT 1
    `, key))
	if err != nil {
		return models.User{}, fmt.Errorf("select user by identifier: %w", err)
	}
	return user, nil
}

// FindByIDs returns the users that exist among ids, in the order of ids.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::TEXT[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("query users by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.User, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	out := make([]models.User, 0, len(byID))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

// List returns every user in registration order.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateProfile overwrites the fields set in update.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate, at time.Time) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `
        UPDATE users
        SET first_name = COALESCE($2::TEXT, first_name),
            last_name = COALESCE($3::TEXT, last_name),
            location = COALESCE($4::TEXT, location),
            occupation = COALESCE($5::TEXT, occupation),
            updated_at = $6
        WHERE id = $1
        RETURNING `+userColumns,
		id, update.FirstName, update.LastName, update.Location, update.Occupation, at))
	if err != nil {
		return models.User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

// IncrementProfileViews bumps the viewed_profile counter in place.
func (r *PostgresUserRepository) IncrementProfileViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE users SET viewed_profile = viewed_profile + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment profile views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFriend flips the friend edge inside one transaction. Both rows are
// locked in id order, so concurrent toggles of the same pair serialize and
// the relation stays symmetric.
func (r *PostgresUserRepository) ToggleFriend(ctx context.Context, userID, friendID string, at time.Time) (models.User, models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("begin friend toggle: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
        SELECT id, friends
        FROM users
        WHERE id = ANY($1::TEXT[])
        ORDER BY id
        FOR UPDATE
    `, []string{userID, friendID})
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("lock users: %w", err)
	}
	friendSets := make(map[string][]string, 2)
	for rows.Next() {
		var (
			id      string
			friends []string
		)
		if err := rows.Scan(&id, &friends); err != nil {
			rows.Close()
			return models.User{}, models.User{}, fmt.Errorf("scan locked user: %w", err)
		}
		friendSets[id] = friends
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.User{}, models.User{}, fmt.Errorf("iterate locked users: %w", err)
	}

	current, ok := friendSets[userID]
	if !ok {
		return models.User{}, models.User{}, ErrNotFound
	}
	if _, ok := friendSets[friendID]; !ok {
		return models.User{}, models.User{}, ErrNotFound
	}

	statement := `
        UPDATE users
        SET friends = array_append(friends, $2::TEXT), updated_at = $3
        WHERE id = $1 AND NOT ($2::TEXT = ANY(friends))
    `
	if (models.User{Friends: current}).HasFriend(friendID) {
		statement = `
        UPDATE users
        SET friends = array_remove(friends, $2::TEXT), updated_at = $3
        WHERE id = $1
    `
	}

	if _, err := tx.Exec(ctx, statement, userID, friendID, at); err != nil {
		return models.User{}, models.User{}, fmt.Errorf("update friends of %s: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, statement, friendID, userID, at); err != nil {
		return models.User{}, models.User{}, fmt.Errorf("update friends of %s: %w", friendID, err)
	}

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("reload user: %w", err)
	}
	friend, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, friendID))
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("reload friend: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, models.User{}, fmt.Errorf("commit friend toggle: %w", err)
	}
	return user, friend, nil
}

// PostgresPostRepository provides PostgreSQL-backed persistence for posts.
type PostgresPostRepository struct {
	pool db.Pool
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Create stores a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	likes := post.Likes
	if likes == nil {
		likes = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO posts (id, user_id, username, first_name, last_name, location, user_picture_path,
            description, picture_path, likes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, post.ID, post.UserID, post.Username, post.FirstName, post.LastName, post.Location, post.UserPicturePath,
		post.Description, post.PicturePath, likes, post.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// FindByID fetches a post by id.
func (r *PostgresPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	post, err := scanPost(conn.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return models.Post{}, fmt.Errorf("select post: %w", err)
	}
	return post, nil
}

// List returns posts newest first, optionally restricted to one author.
func (r *PostgresPostRepository) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC, id DESC`
	args := []any{}
	if filter.UserID != "" {
		query = `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
		args = append(args, filter.UserID)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// ToggleLike flips userID's membership in a single UPDATE so concurrent
// toggles on the same row never duplicate an id.
func (r *PostgresPostRepository) ToggleLike(ctx context.Context, postID, userID string) (models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	post, err := scanPost(conn.QueryRow(ctx, `
        UPDATE posts
        SET likes = CASE
            WHEN $2::TEXT = ANY(likes) THEN array_remove(likes, $2::TEXT)
            ELSE array_append(likes, $2::TEXT)
        END
        WHERE id = $1
        RETURNING `+postColumns, postID, userID))
	if err != nil {
		return models.Post{}, fmt.Errorf("toggle like: %w", err)
	}
	return post, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash,
		&user.Location, &user.Occupation, &user.PicturePath, &user.Friends, &user.ViewedProfile, &user.Impressions,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Username, &post.FirstName, &post.LastName, &post.Location,
		&post.UserPicturePath, &post.Description, &post.PicturePath, &post.Likes, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, err
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	post.CreatedAt = post.CreatedAt.UTC()
	return post, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FriendRepository = (*PostgresUserRepository)(nil)
var _ PostRepository = (*PostgresPostRepository)(nil)
