package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/models"
)

const usersCollection = "users"

// ErrDuplicate is returned when an insert violates the unique username or
// email index. The index is the source of truth for uniqueness; the service
// layer's pre-check only improves the error latency.
var ErrDuplicate = errors.New("duplicate username or email")

type UserReadRepository struct {
	coll *mongo.Collection
}

func NewUserReadRepository(db *mongo.Database) *UserReadRepository {
	return &UserReadRepository{coll: db.Collection(usersCollection)}
}

// GetByUsernameOrEmail returns a user matching any of the provided fields,
// or nil when none matches. Nil arguments are excluded from the match.
func (r *UserReadRepository) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.UserDB, error) {
	var or bson.A
	if username != nil {
		or = append(or, bson.M{"username": *username})
	}
	if email != nil {
		or = append(or, bson.M{"email": *email})
	}
	if len(or) == 0 {
		return nil, nil
	}

	var user models.UserDB
	err := r.coll.FindOne(ctx, bson.M{"$or": or}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logger.Log.Errorw("users lookup failed", "error", err)
		return nil, err
	}

	return &user, nil
}

// GetByID returns the user with the given hex id, or nil when the id does
// not parse or no document matches.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserDB, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var user models.UserDB
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logger.Log.Errorw("users lookup by id failed", "id", id, "error", err)
		return nil, err
	}

	return &user, nil
}

// GetAll returns every user, oldest first.
func (r *UserReadRepository) GetAll(ctx context.Context) ([]models.UserDB, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		logger.Log.Errorw("users listing failed", "error", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.UserDB
	if err := cur.All(ctx, &users); err != nil {
		logger.Log.Errorw("users listing decode failed", "error", err)
		return nil, err
	}

	return users, nil
}

type UserWriteRepository struct {
	coll *mongo.Collection
}

func NewUserWriteRepository(db *mongo.Database) *UserWriteRepository {
	return &UserWriteRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes backing the username and email
// invariants. Called once at startup.
func (r *UserWriteRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

// Save inserts a new user and returns the stored record. A unique-index
// violation maps to ErrDuplicate.
func (r *UserWriteRepository) Save(ctx context.Context, username, email, passwordHash, role string) (*models.UserDB, error) {
	now := time.Now().UTC()
	user := models.UserDB{
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		logger.Log.Errorw("users insert failed", "username", username, "error", err)
		return nil, err
	}

	user.ID = res.InsertedID.(primitive.ObjectID)
	logger.Log.Infow("user created", "id", user.ID.Hex(), "username", username)
	return &user, nil
}
