package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/circlesocial/backend/internal/models"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

type userDocument struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	UsernameKey   string    `bson:"usernameKey"`
	Email         string    `bson:"email,omitempty"`
	FirstName     string    `bson:"firstName"`
	LastName      string    `bson:"lastName"`
	PasswordHash  string    `bson:"passwordHash"`
	Location      string    `bson:"location"`
	Occupation    string    `bson:"occupation"`
	PicturePath   string    `bson:"picturePath"`
	Friends       []string  `bson:"friends"`
	ViewedProfile int64     `bson:"viewedProfile"`
	Impressions   int64     `bson:"impressions"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func (d userDocument) model() models.User {
	friends := d.Friends
	if friends == nil {
		friends = []string{}
	}
	return models.User{
		ID:            d.ID,
		Username:      d.Username,
		Email:         d.Email,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		PasswordHash:  d.PasswordHash,
		Location:      d.Location,
		Occupation:    d.Occupation,
		PicturePath:   d.PicturePath,
		Friends:       friends,
		ViewedProfile: d.ViewedProfile,
		Impressions:   d.Impressions,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func newUserDocument(u models.User) userDocument {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	return userDocument{
		ID:            u.ID,
		Username:      u.Username,
		UsernameKey:   strings.ToLower(u.Username),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		PasswordHash:  u.PasswordHash,
		Location:      u.Location,
		Occupation:    u.Occupation,
		PicturePath:   u.PicturePath,
		Friends:       friends,
		ViewedProfile: u.ViewedProfile,
		Impressions:   u.Impressions,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type postDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"userId"`
	Username        string    `bson:"username"`
	FirstName       string    `bson:"firstName"`
	LastName        string    `bson:"lastName"`
	Location        string    `bson:"location"`
	UserPicturePath string    `bson:"userPicturePath"`
	Description     string    `bson:"description"`
	PicturePath     string    `bson:"picturePath"`
	Likes           []string  `bson:"likes"`
	CreatedAt       time.Time `bson:"createdAt"`
}

func (d postDocument) model() models.Post {
	likes := d.Likes
	if likes == nil {
		likes = []string{}
	}
	return models.Post{
		ID:              d.ID,
		UserID:          d.UserID,
		Username:        d.Username,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Location:        d.Location,
		UserPicturePath: d.UserPicturePath,
		Description:     d.Description,
		PicturePath:     d.PicturePath,
		Likes:           likes,
		CreatedAt:       d.CreatedAt.UTC(),
	}
}

// EnsureMongoIndexes creates the unique indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "usernameKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = database.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	return nil
}

// MongoUserRepository stores users as documents carrying their friend id set.
type MongoUserRepository struct {
	users *mongo.Collection
}

// NewMongoUserRepository constructs a user repository on database.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: database.Collection(usersCollection)}
}

// Create inserts a new user document.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	if strings.Contains(user.Username, "@") {
		return fmt.Errorf("insert user: username %q must not contain @", user.Username)
	}
	if _, err := r.users.InsertOne(ctx, newUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByIdentifier fetches a user by username or email address.
func (r *MongoUserRepository) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	key := strings.ToLower(identifier)
	user, err := r.findOne(ctx, bson.M{"usernameKey": key})
	if errors.Is(err, ErrNotFound) {
		return r.findOne(ctx, bson.M{"email": key})
	}
	return user, err
}

// FindByIDs returns the users that exist among ids, in the order of ids.
func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users by id: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	byID := make(map[string]models.User, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc.model()
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
func (r *MongoUserRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.model())
	}
	return users, nil
}

// UpdateProfile sets the fields present in update and returns the new document.
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate, at time.Time) (models.User, error) {
	set := bson.M{"updatedAt": at}
	if update.FirstName != nil {
		set["firstName"] = *update.FirstName
	}
	if update.LastName != nil {
		set["lastName"] = *update.LastName
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Occupation != nil {
		set["occupation"] = *update.Occupation
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update user profile: %w", err)
	}
	return doc.model(), nil
}

// IncrementProfileViews bumps the viewedProfile counter with $inc.
func (r *MongoUserRepository) IncrementProfileViews(ctx context.Context, id string) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"viewedProfile": 1}})
	if err != nil {
		return fmt.Errorf("increment profile views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFriend decides the direction from the acting user's document and then
// applies $addToSet or $pull to each side. Each side is atomic on its own; a
// failure between the two writes can leave the pair asymmetric until the next
// toggle, which repairs it.
func (r *MongoUserRepository) ToggleFriend(ctx context.Context, userID, friendID string, at time.Time) (models.User, models.User, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	if _, err := r.FindByID(ctx, friendID); err != nil {
		return models.User{}, models.User{}, err
	}

	operator := "$addToSet"
	if user.HasFriend(friendID) {
		operator = "$pull"
	}

	updated, err := r.applyFriendOp(ctx, userID, friendID, operator, at)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	friend, err := r.applyFriendOp(ctx, friendID, userID, operator, at)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	return updated, friend, nil
}

func (r *MongoUserRepository) applyFriendOp(ctx context.Context, id, other, operator string, at time.Time) (models.User, error) {
	update := bson.M{
		operator: bson.M{"friends": other},
		"$set":   bson.M{"updatedAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	if err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update friends of %s: %w", id, err)
	}
	return doc.model(), nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.model(), nil
}

// MongoPostRepository stores posts as documents carrying their like set.
type MongoPostRepository struct {
	posts *mongo.Collection
}

// NewMongoPostRepository constructs a post repository on database.
func NewMongoPostRepository(database *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{posts: database.Collection(postsCollection)}
}

// Create inserts a new post document.
func (r *MongoPostRepository) Create(ctx context.Context, post models.Post) error {
	likes := post.Likes
	if likes == nil {
		likes = []string{}
	}
	doc := postDocument{
		ID:              post.ID,
		UserID:          post.UserID,
		Username:        post.Username,
		FirstName:       post.FirstName,
		LastName:        post.LastName,
		Location:        post.Location,
		UserPicturePath: post.UserPicturePath,
		Description:     post.Description,
		PicturePath:     post.PicturePath,
		Likes:           likes,
		CreatedAt:       post.CreatedAt,
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// FindByID fetches a post by id.
func (r *MongoPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	var doc postDocument
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("find post: %w", err)
	}
	return doc.model(), nil
}

// List returns posts newest first, optionally restricted to one author.
func (r *MongoPostRepository) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.model())
	}
	return posts, nil
}

// ToggleLike flips membership with a pipeline update, so the read of the
// current set and the write happen in one server-side operation.
func (r *MongoPostRepository) ToggleLike(ctx context.Context, postID, userID string) (models.Post, error) {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{userID, likes}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: likes},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
			}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userID}}}},
		}}}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDocument
	if err := r.posts.FindOneAndUpdate(ctx, bson.M{"_id": postID}, pipeline, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("toggle like: %w", err)
	}
	return doc.model(), nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
var _ FriendRepository = (*MongoUserRepository)(nil)
var _ PostRepository = (*MongoPostRepository)(nil)
